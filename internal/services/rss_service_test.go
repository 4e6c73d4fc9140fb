package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive-backend/config"
	"hive-backend/utils"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Campus Events</title>
    <item>
      <title>Chess Club: Weekly Meetup</title>
      <link>https://example.edu/events/42</link>
      <guid>event 42</guid>
      <pubDate>Mon, 09 Mar 2026 18:00:00 GMT</pubDate>
      <description>&lt;p&gt;Open play for all levels. Location: Student Union 145&lt;/p&gt;</description>
    </item>
    <item>
      <title>Spring Career Fair</title>
      <link>https://example.edu/events/43</link>
      <guid>event-43</guid>
      <pubDate>Tue, 10 Mar 2026 14:00:00 GMT</pubDate>
      <description>Hosted by: Career Services&#10;Bring your resume.</description>
    </item>
  </channel>
</rss>`

func newTestRSSService(feedURL string) *RSSService {
	return &RSSService{
		cfg: &config.Config{
			FeedURL:          feedURL,
			FeedFetchTimeout: 5 * time.Second,
			SyncBatchSize:    500,
		},
		breaker: utils.NewCircuitBreaker("test-feed"),
		client:  &http.Client{Timeout: 5 * time.Second},
		parser:  gofeed.NewParser(),
		now:     func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRSSService_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	service := newTestRSSService(server.URL)

	events, err := service.fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	chess := events[0]
	assert.Equal(t, "event-42", chess.ExternalID)
	assert.Equal(t, "Chess Club: Weekly Meetup", chess.Name)
	assert.Equal(t, "Student Union 145", chess.Location)
	assert.Equal(t, "Chess Club", chess.Organizer, "organizer falls back to the title prefix")
	assert.Equal(t, "Open play for all levels. Location: Student Union 145", chess.Description)
	assert.Equal(t, time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC), chess.StartDate)
	assert.Equal(t, chess.StartDate.Add(2*time.Hour), chess.EndDate)

	fair := events[1]
	assert.Equal(t, "Career Services", fair.Organizer)
}

func TestRSSService_Fetch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := newTestRSSService(server.URL)

	_, err := service.fetch(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestRSSService_Fetch_InvalidFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	service := newTestRSSService(server.URL)

	_, err := service.fetch(context.Background())
	assert.Error(t, err)
}

func TestProcessFeedItem_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	event := processFeedItem(&gofeed.Item{}, now)

	assert.Equal(t, "Untitled Event", event.Name)
	assert.Equal(t, now, event.StartDate, "missing pubDate falls back to now")
	assert.Equal(t, now.Add(2*time.Hour), event.EndDate)
	assert.NotEmpty(t, event.ExternalID, "an id is generated when guid and title are empty")
	assert.Equal(t, "University at Buffalo", event.Organizer)
}

func TestProcessFeedItem_SlugFromTitle(t *testing.T) {
	now := time.Now().UTC()

	event := processFeedItem(&gofeed.Item{Title: "Late Night Pancakes!"}, now)

	assert.Equal(t, "late-night-pancakes-", event.ExternalID)
}

func TestExtractLocation(t *testing.T) {
	assert.Equal(t, "Knox Hall 104", extractLocation("Details below. Location: Knox Hall 104\nDoors at 7"))
	assert.Equal(t, "", extractLocation("no venue mentioned"))
}

func TestExtractOrganizer(t *testing.T) {
	assert.Equal(t, "SA Clubs", extractOrganizer("Presented by: SA Clubs", "Anything"))
	assert.Equal(t, "Robotics", extractOrganizer("no match here", "Robotics: Demo Day"))
	assert.Equal(t, "University at Buffalo", extractOrganizer("no match", "no colon title"))
}

func TestSanitizeDescription(t *testing.T) {
	got := sanitizeDescription("<p>Free food&amp;games</p>")
	assert.Equal(t, "Free food games", got)
	assert.Equal(t, "plain text", sanitizeDescription("  plain text "))
}

func TestShouldImport(t *testing.T) {
	assert.True(t, shouldImport("external", false))
	assert.True(t, shouldImport("external-rss", false))
	assert.False(t, shouldImport("external", true), "user edits are preserved")
	assert.False(t, shouldImport("manual", false), "hand-created events are never overwritten")
}

func TestRSSService_PartitionAgainstStore(t *testing.T) {
	app := newTestApp(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &RSSService{
		app: app,
		cfg: &config.Config{SyncBatchSize: 500},
		now: func() time.Time { return now },
	}

	createTestEvent(t, app, "", map[string]any{
		"name":        "Chess Club",
		"external_id": "evt-feed",
		"source":      "external",
	})
	createTestEvent(t, app, "", map[string]any{
		"name":             "Edited by hand",
		"external_id":      "evt-edited",
		"source":           "external",
		"is_user_modified": true,
	})
	createTestEvent(t, app, "", map[string]any{
		"name":        "Hand-created",
		"external_id": "evt-manual",
		"source":      "manual",
	})

	feed := []FeedEvent{
		{ExternalID: "evt-feed", Name: "Chess Club: Weekly Meetup"},
		{ExternalID: "evt-edited", Name: "Should not land"},
		{ExternalID: "evt-manual", Name: "Should not land either"},
		{ExternalID: "evt-brand-new", Name: "Spring Career Fair"},
	}

	toUpdate, skipped, err := service.partition(feed)

	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, toUpdate, 2)
	require.NotNil(t, toUpdate[0].existing, "a known feed event updates in place")
	assert.Equal(t, "evt-feed", toUpdate[0].existing.GetString("external_id"))
	assert.Nil(t, toUpdate[1].existing, "an unseen external id creates a record")
	assert.Equal(t, "evt-brand-new", toUpdate[1].data.ExternalID)
}

func TestRSSService_SaveUpsertsFeedEvents(t *testing.T) {
	app := newTestApp(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &RSSService{
		app: app,
		cfg: &config.Config{SyncBatchSize: 500},
		now: func() time.Time { return now },
	}

	createTestEvent(t, app, "", map[string]any{
		"name":        "Old name",
		"external_id": "evt-feed",
		"source":      "external",
	})

	feed := []FeedEvent{
		{
			ExternalID: "evt-feed",
			Name:       "Chess Club: Weekly Meetup",
			Location:   "Student Union 145",
			StartDate:  now.Add(24 * time.Hour),
			EndDate:    now.Add(26 * time.Hour),
		},
		{
			ExternalID: "evt-brand-new",
			Name:       "Spring Career Fair",
			StartDate:  now.Add(48 * time.Hour),
			EndDate:    now.Add(50 * time.Hour),
		},
	}

	toUpdate, skipped, err := service.partition(feed)
	require.NoError(t, err)
	require.Equal(t, 0, skipped)
	require.NoError(t, service.save(toUpdate))

	updated, err := app.FindFirstRecordByData("events", "external_id", "evt-feed")
	require.NoError(t, err)
	assert.Equal(t, "Chess Club: Weekly Meetup", updated.GetString("name"))
	assert.Equal(t, "Student Union 145", updated.GetString("location"))
	assert.Equal(t, "external", updated.GetString("source"))
	assert.False(t, updated.GetBool("is_user_modified"))
	assert.Equal(t, now, updated.GetDateTime("synced_at").Time())

	created, err := app.FindFirstRecordByData("events", "external_id", "evt-brand-new")
	require.NoError(t, err)
	assert.Equal(t, "Spring Career Fair", created.GetString("name"))
	assert.Equal(t, now.Add(48*time.Hour), created.GetDateTime("start_date").Time())
}
