package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// State is the lifecycle stage of an event relative to its time window.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateLive      State = "live"
	StateCompleted State = "completed"
	StateArchived  State = "archived"
)

// AllStates lists every lifecycle state in forward order.
var AllStates = []State{StateDraft, StatePublished, StateLive, StateCompleted, StateArchived}

func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// TransitionType records what caused a state change.
type TransitionType string

const (
	TransitionCreation  TransitionType = "creation"
	TransitionAutomatic TransitionType = "automatic"
	TransitionManual    TransitionType = "manual"
)

// HistoryEntry is a single state change in an event's history.
type HistoryEntry struct {
	State          State          `json:"state"`
	Timestamp      time.Time      `json:"timestamp"`
	TransitionType TransitionType `json:"transitionType"`
	UpdatedBy      string         `json:"updatedBy,omitempty"`
}

// StateHistory is the ordered log of an event's state changes.
// It is append-only: Append returns a new log and never mutates the
// receiver, so an already loaded history can be shared safely.
type StateHistory []HistoryEntry

func (h StateHistory) Append(entry HistoryEntry) StateHistory {
	out := make(StateHistory, len(h), len(h)+1)
	copy(out, h)
	return append(out, entry)
}

func (h StateHistory) Last() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[len(h)-1], true
}

type Event struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	Organizer      string       `json:"organizer"`
	Link           string       `json:"link"`
	State          State        `json:"state"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	CreatedBy      string       `json:"created_by"`
	StateUpdatedAt time.Time    `json:"state_updated_at"`
	StateHistory   StateHistory `json:"state_history"`
	Published      bool         `json:"published"`
	Source         string       `json:"source"`
	IsUserModified bool         `json:"is_user_modified"`
}

// InitialStateFor picks the state assigned to a freshly created event
// from its legacy published flag.
func InitialStateFor(published bool) State {
	if published {
		return StatePublished
	}
	return StateDraft
}

// EventFromRecord maps an events record into an Event.
func EventFromRecord(r *core.Record) (*Event, error) {
	history, err := HistoryFromRecord(r)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:             r.Id,
		Name:           r.GetString("name"),
		Description:    r.GetString("description"),
		Location:       r.GetString("location"),
		Organizer:      r.GetString("organizer"),
		Link:           r.GetString("link"),
		State:          State(r.GetString("state")),
		StartDate:      r.GetDateTime("start_date").Time(),
		EndDate:        r.GetDateTime("end_date").Time(),
		CreatedBy:      r.GetString("created_by"),
		StateUpdatedAt: r.GetDateTime("state_updated_at").Time(),
		StateHistory:   history,
		Published:      r.GetBool("published"),
		Source:         r.GetString("source"),
		IsUserModified: r.GetBool("is_user_modified"),
	}, nil
}

// HistoryFromRecord decodes the state_history JSON field.
func HistoryFromRecord(r *core.Record) (StateHistory, error) {
	raw := r.Get("state_history")
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("state history: %w", err)
	}

	return ParseHistory(data)
}

// ParseHistory decodes a raw state_history value. Empty and null
// payloads decode to an empty log.
func ParseHistory(data []byte) (StateHistory, error) {
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		return nil, nil
	}

	var history StateHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("state history: %w", err)
	}
	return history, nil
}

// ApplyTransition writes a state change onto a record: the new state,
// the state_updated_at stamp and an appended history entry. The record
// is not saved here.
func ApplyTransition(r *core.Record, to State, now time.Time, transitionType TransitionType, updatedBy string) error {
	history, err := HistoryFromRecord(r)
	if err != nil {
		return err
	}

	entry := HistoryEntry{
		State:          to,
		Timestamp:      now,
		TransitionType: transitionType,
		UpdatedBy:      updatedBy,
	}

	r.Set("state", string(to))
	r.Set("state_updated_at", now.Format(types.DefaultDateLayout))
	r.Set("state_history", history.Append(entry))
	return nil
}

// ApplyInitialState seeds a record that was created without a state.
// The history is reset to a single creation entry.
func ApplyInitialState(r *core.Record, initial State, now time.Time) {
	r.Set("state", string(initial))
	r.Set("state_updated_at", now.Format(types.DefaultDateLayout))
	r.Set("state_history", StateHistory{{
		State:          initial,
		Timestamp:      now,
		TransitionType: TransitionCreation,
	}})
}
