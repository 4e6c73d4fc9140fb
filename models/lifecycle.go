package models

import "time"

// User roles consulted by the permission matrix.
const (
	RolePublic string = "public"
	RoleAdmin  string = "admin"
)

// AutoTransition is one edge of the automatic lifecycle machine. An
// event in From whose DateField lies at least Delay in the past is due
// to move to To.
type AutoTransition struct {
	Name      string
	From      State
	To        State
	DateField string
	Delay     time.Duration
}

// AutoTransitions returns the automatic rules in evaluation order.
// archiveDelay is the dwell time in completed before archival.
func AutoTransitions(archiveDelay time.Duration) []AutoTransition {
	return []AutoTransition{
		{Name: "publishedToLive", From: StatePublished, To: StateLive, DateField: "start_date"},
		{Name: "liveToCompleted", From: StateLive, To: StateCompleted, DateField: "end_date"},
		{Name: "completedToArchived", From: StateCompleted, To: StateArchived, DateField: "end_date", Delay: archiveDelay},
	}
}

// Cutoff is the latest DateField value that makes an event due at now.
func (t AutoTransition) Cutoff(now time.Time) time.Time {
	return now.Add(-t.Delay)
}

// Due reports whether the event qualifies for this transition at now.
func (t AutoTransition) Due(ev *Event, now time.Time) bool {
	if ev.State != t.From {
		return false
	}

	gate := ev.StartDate
	if t.DateField == "end_date" {
		gate = ev.EndDate
	}
	if gate.IsZero() {
		return false
	}

	return !gate.Add(t.Delay).After(now)
}

// CanTransition is the permission matrix for manual transitions. The
// branches are ordered: archive rule, creator rule, admin catch-all,
// deny. The creator branch is selected whenever the caller is the
// creator, so a creator (admin or not) asking for anything outside the
// draft/published pair is denied there.
func CanTransition(current, target State, isCreator bool, role string, startDate, now time.Time) bool {
	switch {
	case target == StateArchived:
		// Only admins may archive, creator or not.
		return role == RoleAdmin

	case isCreator:
		// Creators may publish a draft, or pull a published event back
		// to draft before it starts.
		if current == StateDraft && target == StatePublished {
			return true
		}
		if current == StatePublished && target == StateDraft && now.Before(startDate) {
			return true
		}
		return false

	case role == RoleAdmin:
		return true

	default:
		return false
	}
}
