package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"hive-backend/config"
	"hive-backend/internal/status"
	"hive-backend/models"
	"hive-backend/monitoring"
)

// LifecycleService owns the event lifecycle: the periodic advancer, the
// permission-checked manual transition and the creation validator. It is
// the only writer of state, state_updated_at and state_history.
type LifecycleService struct {
	app      core.App
	notifier *NotificationService
	cfg      *config.Config
	now      func() time.Time
}

func NewLifecycleService(app core.App, notifier *NotificationService, cfg *config.Config) *LifecycleService {
	return &LifecycleService{
		app:      app,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

type dueTransition struct {
	record *core.Record
	rule   models.AutoTransition
}

// RunAdvancer performs one pass of the automatic state machine: one
// query per rule, one transaction for every matched record. An event
// advances at most one state per run; a delayed one is picked up again
// on the next tick.
func (s *LifecycleService) RunAdvancer(ctx context.Context) error {
	started := s.now()
	now := started.UTC()

	rules := models.AutoTransitions(s.cfg.ArchiveDelay)
	counts := make(map[string]int, len(rules))
	var due []dueTransition

	for _, rule := range rules {
		records, err := s.findDue(rule, now)
		if err != nil {
			monitoring.TrackAdvancerRun("error", s.now().Sub(started), 0)
			slog.Error("Advancer query failed", "rule", rule.Name, "error", err)
			return fmt.Errorf("advancer: query %s: %w", rule.Name, err)
		}

		counts[rule.Name] = len(records)
		for _, record := range records {
			due = append(due, dueTransition{record: record, rule: rule})
		}
	}

	if len(due) == 0 {
		slog.Info("No event states needed updating")
		monitoring.TrackAdvancerRun("noop", s.now().Sub(started), 0)
		return nil
	}

	err := s.app.RunInTransaction(func(txApp core.App) error {
		for _, d := range due {
			if err := models.ApplyTransition(d.record, d.rule.To, now, models.TransitionAutomatic, ""); err != nil {
				return err
			}
			if err := txApp.Save(d.record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		monitoring.TrackAdvancerRun("error", s.now().Sub(started), 0)
		slog.Error("Error updating event states", "error", err)
		return fmt.Errorf("advancer: commit: %w", err)
	}

	for _, d := range due {
		monitoring.TrackTransition(d.rule.From, d.rule.To, models.TransitionAutomatic)
	}
	monitoring.TrackAdvancerRun("success", s.now().Sub(started), len(due))

	slog.Info("Successfully updated event states",
		"total", len(due),
		"publishedToLive", counts["publishedToLive"],
		"liveToCompleted", counts["liveToCompleted"],
		"completedToArchived", counts["completedToArchived"],
	)

	go s.notifyTransitions(context.WithoutCancel(ctx), due)

	return nil
}

func (s *LifecycleService) findDue(rule models.AutoTransition, now time.Time) ([]*core.Record, error) {
	cutoff := rule.Cutoff(now)

	// The empty-string guard keeps events without a date from matching
	// the range comparison.
	filter := fmt.Sprintf("state = {:state} && %[1]s != '' && %[1]s <= {:cutoff}", rule.DateField)

	return s.app.FindRecordsByFilter(
		"events",
		filter,
		"",
		0,
		0,
		dbx.Params{
			"state":  string(rule.From),
			"cutoff": cutoff.Format(types.DefaultDateLayout),
		},
	)
}

func (s *LifecycleService) notifyTransitions(ctx context.Context, due []dueTransition) {
	for _, d := range due {
		creator := d.record.GetString("created_by")
		if creator == "" {
			continue
		}

		name := d.record.GetString("name")
		if err := s.notifier.NotifyUser(ctx, creator,
			"Event update",
			fmt.Sprintf("%s is now %s", name, d.rule.To),
			map[string]string{
				"type":     "event_state",
				"event_id": d.record.Id,
				"state":    string(d.rule.To),
			},
		); err != nil {
			slog.Error("Failed to notify event creator", "eventID", d.record.Id, "error", err)
		}
	}
}

// ManualTransition moves an event to targetState on behalf of callerID,
// subject to the permission matrix. Returns a confirmation message.
func (s *LifecycleService) ManualTransition(ctx context.Context, callerID, eventID, targetState string) (string, error) {
	if callerID == "" {
		return "", status.ErrUnauthenticated
	}
	if eventID == "" || targetState == "" {
		return "", fmt.Errorf("%w: event id and target state are required", status.ErrInvalidArgument)
	}

	target := models.State(targetState)
	if !target.Valid() {
		return "", fmt.Errorf("%w: unknown target state %q", status.ErrInvalidArgument, targetState)
	}

	user, err := s.app.FindRecordById("users", callerID)
	if err != nil {
		return "", status.ErrUserNotFound
	}
	role := user.GetString("role")
	if role == "" {
		role = models.RolePublic
	}

	event, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return "", status.ErrEventNotFound
	}

	current := models.State(event.GetString("state"))
	if current == "" {
		current = models.StateDraft
	}
	isCreator := event.GetString("created_by") == callerID
	startDate := event.GetDateTime("start_date").Time()

	now := s.now().UTC()
	if !models.CanTransition(current, target, isCreator, role, startDate, now) {
		return "", status.ErrPermissionDenied
	}

	if err := models.ApplyTransition(event, target, now, models.TransitionManual, callerID); err != nil {
		return "", fmt.Errorf("manual transition: %w", err)
	}
	if err := s.app.Save(event); err != nil {
		slog.Error("Error in manual transition", "eventID", eventID, "error", err)
		return "", fmt.Errorf("manual transition: save: %w", err)
	}

	monitoring.TrackTransition(current, target, models.TransitionManual)
	slog.Info("Manual event transition",
		"eventID", eventID,
		"from", current,
		"to", target,
		"updatedBy", callerID,
	)

	if creator := event.GetString("created_by"); creator != "" && creator != callerID {
		go func() {
			if err := s.notifier.NotifyUser(context.WithoutCancel(ctx), creator,
				"Event update",
				fmt.Sprintf("%s is now %s", event.GetString("name"), target),
				map[string]string{
					"type":     "event_state",
					"event_id": eventID,
					"state":    string(target),
				},
			); err != nil {
				slog.Error("Failed to notify event creator", "eventID", eventID, "error", err)
			}
		}()
	}

	return fmt.Sprintf("Event transitioned to %s", target), nil
}

// EnsureInitialState runs once per created events record. A record that
// already carries a state is left alone; otherwise the legacy published
// flag picks draft or published and the history is seeded with a single
// creation entry.
func (s *LifecycleService) EnsureInitialState(record *core.Record) (models.State, bool, error) {
	if record.GetString("state") != "" {
		return models.State(record.GetString("state")), false, nil
	}

	initial := models.InitialStateFor(record.GetBool("published"))
	models.ApplyInitialState(record, initial, s.now().UTC())

	if err := s.app.Save(record); err != nil {
		slog.Error("Error in event creation validation", "eventID", record.Id, "error", err)
		return "", false, fmt.Errorf("creation validator: %w", err)
	}

	monitoring.TrackTransition("", initial, models.TransitionCreation)
	slog.Info("Set initial state for event", "eventID", record.Id, "state", initial)
	return initial, true, nil
}
