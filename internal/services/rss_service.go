package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/redis/go-redis/v9"

	"hive-backend/config"
	"hive-backend/monitoring"
	"hive-backend/utils"
)

const syncStatusKey = "feed:sync:status"

// defaultEventDuration is assumed when the feed gives no end time.
const defaultEventDuration = 2 * time.Hour

var (
	slugPattern      = regexp.MustCompile(`[^\w-]+`)
	locationPattern  = regexp.MustCompile(`(?i)location[:\s]+([^<\n]+)`)
	organizerPattern = regexp.MustCompile(`(?i)(?:hosted|organized|presented) by[:\s]+([^<\n]+)`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	entityPattern    = regexp.MustCompile(`&[^;]+;`)
)

// FeedEvent is a normalized campus feed item ready for import.
type FeedEvent struct {
	ExternalID  string
	Name        string
	Description string
	Location    string
	Organizer   string
	Link        string
	StartDate   time.Time
	EndDate     time.Time
}

// RSSService imports the campus events feed on a schedule. Events that
// a user has edited, or that did not come from the feed, are never
// overwritten.
type RSSService struct {
	app     core.App
	redis   *redis.Client
	cfg     *config.Config
	breaker *utils.CircuitBreaker
	client  *http.Client
	parser  *gofeed.Parser
	now     func() time.Time
}

func NewRSSService(app core.App, redisClient *redis.Client, cfg *config.Config) *RSSService {
	return &RSSService{
		app:     app,
		redis:   redisClient,
		cfg:     cfg,
		breaker: utils.NewCircuitBreaker("campus-feed"),
		client:  &http.Client{Timeout: cfg.FeedFetchTimeout},
		parser:  gofeed.NewParser(),
		now:     time.Now,
	}
}

// Sync runs one feed import pass.
func (s *RSSService) Sync(ctx context.Context) error {
	slog.Info("Starting feed event sync", "url", s.cfg.FeedURL)

	events, err := s.fetch(ctx)
	if err != nil {
		s.writeSyncStatus(ctx, map[string]any{
			"status":        "error",
			"error_message": err.Error(),
		})
		monitoring.TrackFeedSync("error", 0)
		slog.Error("Error syncing events", "error", err)
		return fmt.Errorf("feed sync: %w", err)
	}

	slog.Info("Fetched events from feed", "count", len(events))

	toUpdate, skipped, err := s.partition(events)
	if err != nil {
		s.writeSyncStatus(ctx, map[string]any{
			"status":        "error",
			"error_message": err.Error(),
		})
		monitoring.TrackFeedSync("error", 0)
		slog.Error("Error matching feed events against store", "error", err)
		return fmt.Errorf("feed sync: %w", err)
	}

	if len(toUpdate) == 0 {
		slog.Info("No events need to be updated", "skipped", skipped)
		s.writeSyncStatus(ctx, map[string]any{
			"status":        "success_nothing_to_update",
			"event_count":   0,
			"skipped_count": skipped,
		})
		monitoring.TrackFeedSync("noop", 0)
		return nil
	}

	if err := s.save(toUpdate); err != nil {
		s.writeSyncStatus(ctx, map[string]any{
			"status":        "error",
			"error_message": err.Error(),
		})
		monitoring.TrackFeedSync("error", 0)
		slog.Error("Error saving feed events", "error", err)
		return fmt.Errorf("feed sync: save: %w", err)
	}

	s.writeSyncStatus(ctx, map[string]any{
		"status":        "success",
		"event_count":   len(toUpdate),
		"skipped_count": skipped,
	})
	monitoring.TrackFeedSync("success", len(toUpdate))
	slog.Info("Feed event sync completed", "updated", len(toUpdate), "skipped", skipped)
	return nil
}

func (s *RSSService) fetch(ctx context.Context) ([]FeedEvent, error) {
	result, err := s.breaker.Execute(ctx, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch feed: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		feed, err := s.parser.ParseString(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid feed format: %w", err)
		}
		return feed.Items, nil
	})
	if err != nil {
		return nil, err
	}

	items := result.([]*gofeed.Item)
	events := make([]FeedEvent, 0, len(items))
	now := s.now().UTC()
	for _, item := range items {
		events = append(events, processFeedItem(item, now))
	}
	return events, nil
}

// processFeedItem normalizes one feed item into our event shape.
func processFeedItem(item *gofeed.Item, now time.Time) FeedEvent {
	id := item.GUID
	if id == "" {
		id = strings.ToLower(item.Title)
	}
	id = slugPattern.ReplaceAllString(id, "-")
	if id == "" || id == "-" {
		code, err := utils.GenerateCode(8)
		if err == nil {
			id = "feed-" + strings.ToLower(code)
		}
	}

	title := item.Title
	if title == "" {
		title = "Untitled Event"
	}

	start := now
	if item.PublishedParsed != nil {
		start = item.PublishedParsed.UTC()
	}

	return FeedEvent{
		ExternalID:  id,
		Name:        title,
		Description: sanitizeDescription(item.Description),
		Location:    extractLocation(item.Description),
		Organizer:   extractOrganizer(item.Description, item.Title),
		Link:        item.Link,
		StartDate:   start,
		EndDate:     start.Add(defaultEventDuration),
	}
}

func extractLocation(description string) string {
	if match := locationPattern.FindStringSubmatch(description); match != nil {
		return strings.TrimSpace(match[1])
	}
	return ""
}

func extractOrganizer(description, title string) string {
	if match := organizerPattern.FindStringSubmatch(description); match != nil {
		return strings.TrimSpace(match[1])
	}
	if idx := strings.Index(title, ":"); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return "University at Buffalo"
}

func sanitizeDescription(description string) string {
	out := htmlTagPattern.ReplaceAllString(description, "")
	out = entityPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// shouldImport decides whether an existing event may be overwritten by
// the feed: only unmodified feed-sourced events are.
func shouldImport(source string, isUserModified bool) bool {
	return strings.Contains(source, "external") && !isUserModified
}

type feedUpsert struct {
	data     FeedEvent
	existing *core.Record
}

func (s *RSSService) partition(events []FeedEvent) ([]feedUpsert, int, error) {
	var toUpdate []feedUpsert
	skipped := 0

	for _, ev := range events {
		existing, err := s.app.FindFirstRecordByData("events", "external_id", ev.ExternalID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, 0, fmt.Errorf("lookup %q: %w", ev.ExternalID, err)
			}
			// Not found: brand new event.
			toUpdate = append(toUpdate, feedUpsert{data: ev})
			continue
		}

		if !shouldImport(existing.GetString("source"), existing.GetBool("is_user_modified")) {
			skipped++
			slog.Info("Skipping user-modified event", "externalID", ev.ExternalID)
			continue
		}

		toUpdate = append(toUpdate, feedUpsert{data: ev, existing: existing})
	}

	return toUpdate, skipped, nil
}

func (s *RSSService) save(upserts []feedUpsert) error {
	collection, err := s.app.FindCollectionByNameOrId("events")
	if err != nil {
		return err
	}

	now := s.now().UTC()
	batchSize := s.cfg.SyncBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	for start := 0; start < len(upserts); start += batchSize {
		end := start + batchSize
		if end > len(upserts) {
			end = len(upserts)
		}
		chunk := upserts[start:end]

		err := s.app.RunInTransaction(func(txApp core.App) error {
			for _, u := range chunk {
				record := u.existing
				if record == nil {
					record = core.NewRecord(collection)
					record.Set("external_id", u.data.ExternalID)
				}

				record.Set("name", u.data.Name)
				record.Set("description", u.data.Description)
				record.Set("location", u.data.Location)
				record.Set("organizer", u.data.Organizer)
				record.Set("link", u.data.Link)
				record.Set("start_date", u.data.StartDate.Format(types.DefaultDateLayout))
				record.Set("end_date", u.data.EndDate.Format(types.DefaultDateLayout))
				record.Set("source", "external")
				record.Set("is_user_modified", false)
				record.Set("synced_at", now.Format(types.DefaultDateLayout))

				if err := txApp.Save(record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("Committed feed batch", "batch", start/batchSize+1, "size", len(chunk))
	}

	return nil
}

func (s *RSSService) writeSyncStatus(ctx context.Context, fields map[string]any) {
	fields["last_sync_timestamp"] = s.now().UTC().Format(time.RFC3339)

	if err := s.redis.HSet(ctx, syncStatusKey, fields).Err(); err != nil {
		slog.Error("Failed to write feed sync status", "error", err)
	}
}
