package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoTransitions_Order(t *testing.T) {
	rules := AutoTransitions(12 * time.Hour)

	require.Len(t, rules, 3)
	assert.Equal(t, StatePublished, rules[0].From)
	assert.Equal(t, StateLive, rules[0].To)
	assert.Equal(t, StateLive, rules[1].From)
	assert.Equal(t, StateCompleted, rules[1].To)
	assert.Equal(t, StateCompleted, rules[2].From)
	assert.Equal(t, StateArchived, rules[2].To)
	assert.Equal(t, 12*time.Hour, rules[2].Delay)
}

func TestAutoTransition_Cutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rules := AutoTransitions(12 * time.Hour)

	// No delay: the cutoff is now itself.
	assert.Equal(t, now, rules[0].Cutoff(now))
	assert.Equal(t, now, rules[1].Cutoff(now))

	// Archive waits 12 hours past end_date.
	assert.Equal(t, now.Add(-12*time.Hour), rules[2].Cutoff(now))
}

func TestAutoTransition_Due(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rules := AutoTransitions(12 * time.Hour)
	publishedToLive, liveToCompleted, completedToArchived := rules[0], rules[1], rules[2]

	event := &Event{
		State:     StatePublished,
		StartDate: now.Add(-time.Minute),
		EndDate:   now.Add(2 * time.Hour),
	}

	assert.True(t, publishedToLive.Due(event, now))
	assert.False(t, liveToCompleted.Due(event, now), "state gates the rule")
	assert.False(t, completedToArchived.Due(event, now))

	// Start still in the future: not due yet.
	event.StartDate = now.Add(time.Minute)
	assert.False(t, publishedToLive.Due(event, now))

	// A live event past its end is due for completion.
	event.State = StateLive
	event.EndDate = now.Add(-time.Second)
	assert.True(t, liveToCompleted.Due(event, now))

	// Completed events dwell for the archive delay.
	event.State = StateCompleted
	assert.False(t, completedToArchived.Due(event, now))
	assert.True(t, completedToArchived.Due(event, now.Add(12*time.Hour)))
}

func TestAutoTransition_Due_MissingDates(t *testing.T) {
	now := time.Now().UTC()
	rules := AutoTransitions(12 * time.Hour)

	event := &Event{State: StatePublished}
	assert.False(t, rules[0].Due(event, now), "events without dates never match")

	event = &Event{State: StateLive}
	assert.False(t, rules[1].Due(event, now))
}

func TestAutoTransition_SingleStepPerRun(t *testing.T) {
	// An event whose whole window already passed still advances one
	// state at a time: only the rule matching its current state fires.
	now := time.Now().UTC()
	rules := AutoTransitions(12 * time.Hour)

	event := &Event{
		State:     StatePublished,
		StartDate: now.Add(-48 * time.Hour),
		EndDate:   now.Add(-40 * time.Hour),
	}

	var matched []string
	for _, rule := range rules {
		if rule.Due(event, now) {
			matched = append(matched, rule.Name)
		}
	}

	require.Equal(t, []string{"publishedToLive"}, matched)
}

func TestCanTransition_ArchiveRule(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	// Only admins archive, whether or not they created the event.
	assert.True(t, CanTransition(StateCompleted, StateArchived, false, RoleAdmin, future, now))
	assert.True(t, CanTransition(StateCompleted, StateArchived, true, RoleAdmin, future, now))
	assert.False(t, CanTransition(StateCompleted, StateArchived, true, RolePublic, future, now))
	assert.False(t, CanTransition(StateCompleted, StateArchived, false, RolePublic, future, now))
}

func TestCanTransition_CreatorRule(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	// The creator may publish a draft.
	assert.True(t, CanTransition(StateDraft, StatePublished, true, RolePublic, future, now))

	// And revert to draft, but only before the event starts.
	assert.True(t, CanTransition(StatePublished, StateDraft, true, RolePublic, future, now))
	assert.False(t, CanTransition(StatePublished, StateDraft, true, RolePublic, past, now))

	// Nothing else.
	assert.False(t, CanTransition(StatePublished, StateLive, true, RolePublic, future, now))
	assert.False(t, CanTransition(StateLive, StateCompleted, true, RolePublic, past, now))
}

func TestCanTransition_AdminCatchAll(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	// A non-creator admin may perform any non-archive transition.
	assert.True(t, CanTransition(StateDraft, StateLive, false, RoleAdmin, past, now))
	assert.True(t, CanTransition(StateLive, StatePublished, false, RoleAdmin, past, now))
	assert.True(t, CanTransition(StatePublished, StateDraft, false, RoleAdmin, past, now))
}

func TestCanTransition_CreatorBranchShadowsAdmin(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	// An admin who is also the creator lands in the creator branch for
	// non-archive targets, so outside the creator pair the request is
	// denied even though the role is admin.
	assert.False(t, CanTransition(StatePublished, StateLive, true, RoleAdmin, past, now))
	assert.True(t, CanTransition(StateDraft, StatePublished, true, RoleAdmin, past, now))
	assert.True(t, CanTransition(StateCompleted, StateArchived, true, RoleAdmin, past, now))
}

func TestCanTransition_DefaultDeny(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	for _, target := range AllStates {
		assert.False(t, CanTransition(StateDraft, target, false, RolePublic, future, now),
			"non-creator non-admin must be denied target %s", target)
	}
}

func TestState_Valid(t *testing.T) {
	for _, s := range AllStates {
		assert.True(t, s.Valid())
	}
	assert.False(t, State("deleted").Valid())
	assert.False(t, State("").Valid())
}

func TestInitialStateFor(t *testing.T) {
	assert.Equal(t, StatePublished, InitialStateFor(true))
	assert.Equal(t, StateDraft, InitialStateFor(false))
}
