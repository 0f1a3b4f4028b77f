package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elicit-dev/elicit/internal/domain"
)

// fakeTimer captures scheduled callbacks so tests can fire them by hand.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := f.stopped
	f.stopped = true
	return !was
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) factory(d time.Duration, fn func()) stopper {
	t := &fakeTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fireAll() {
	for _, t := range s.timers {
		t.fn()
	}
}

func hintsFixture() []domain.Hint {
	return []domain.Hint{
		{
			ID:       "hint-systems",
			Trigger:  domain.TriggerKeyword,
			Keywords: []string{"slow", "manual"},
			Text:     "Dig deeper into which systems are involved.",
			Category: domain.CategoryTechnical,
		},
		{
			ID:           "hint-workaround",
			Trigger:      domain.TriggerTime,
			DelaySeconds: 30,
			Text:         "Ask what workarounds the team uses.",
			Category:     domain.CategoryDiscovery,
		},
		{
			ID:       "hint-process",
			Trigger:  domain.TriggerManual,
			Text:     "Ask about the step-by-step onboarding process.",
			Category: domain.CategoryDiscovery,
		},
		{
			ID:       "hint-impact",
			Trigger:  domain.TriggerManual,
			Text:     "What's the business impact?",
			Category: domain.CategoryRelationship,
		},
	}
}

func TestEngine_KeywordTrigger(t *testing.T) {
	e := NewEngine(hintsFixture())
	defer e.Close()

	e.ObserveAssistant([]domain.Message{
		{Role: domain.RoleAssistant, Content: "Onboarding is SLOW these days."},
	})

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "hint-systems", active[0].Hint.ID)
}

func TestEngine_KeywordTriggerIdempotent(t *testing.T) {
	e := NewEngine(hintsFixture())
	defer e.Close()

	msgs := []domain.Message{
		{Role: domain.RoleAssistant, Content: "Everything is slow."},
	}
	e.ObserveAssistant(msgs)
	e.ObserveAssistant(msgs)

	assert.Len(t, e.Active(), 1, "re-evaluation must not duplicate an active hint")
}

func TestEngine_KeywordWindowIsLastTwoAssistantMessages(t *testing.T) {
	e := NewEngine(hintsFixture())
	defer e.Close()

	// The matching message is pushed out of the two-message window.
	e.ObserveAssistant([]domain.Message{
		{Role: domain.RoleAssistant, Content: "slow slow slow"},
		{Role: domain.RoleUser, Content: "ok"},
		{Role: domain.RoleAssistant, Content: "nothing relevant"},
		{Role: domain.RoleUser, Content: "ok"},
		{Role: domain.RoleAssistant, Content: "still nothing"},
	})
	assert.Empty(t, e.Active())

	// Inside the window it matches, and user messages never count.
	e.ObserveAssistant([]domain.Message{
		{Role: domain.RoleUser, Content: "slow"},
		{Role: domain.RoleAssistant, Content: "nothing"},
		{Role: domain.RoleAssistant, Content: "it is all manual work"},
	})
	require.Len(t, e.Active(), 1)
	assert.Equal(t, "hint-systems", e.Active()[0].Hint.ID)
}

func TestEngine_DismissedHintNeverReactivates(t *testing.T) {
	e := NewEngine(hintsFixture())
	defer e.Close()

	msgs := []domain.Message{
		{Role: domain.RoleAssistant, Content: "It's slow."},
	}
	e.ObserveAssistant(msgs)
	require.Len(t, e.Active(), 1)

	e.Dismiss("hint-systems")
	assert.Empty(t, e.Active())

	// Keyword condition recurs in later assistant output.
	e.ObserveAssistant([]domain.Message{
		{Role: domain.RoleAssistant, Content: "It's slow."},
		{Role: domain.RoleAssistant, Content: "Really slow and manual."},
	})
	assert.Empty(t, e.Active(), "a dismissed hint is retired for the session")
}

func TestEngine_TimeTrigger(t *testing.T) {
	sched := &fakeScheduler{}
	e := NewEngine(hintsFixture(), WithTimerFactory(sched.factory))
	defer e.Close()

	e.UserTurn()
	require.Len(t, sched.timers, 1, "one timer per unused time hint")

	sched.fireAll()

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "hint-workaround", active[0].Hint.ID)
}

func TestEngine_StaleTimerDoesNotDoubleFire(t *testing.T) {
	sched := &fakeScheduler{}
	e := NewEngine(hintsFixture(), WithTimerFactory(sched.factory))
	defer e.Close()

	e.UserTurn()
	require.Len(t, sched.timers, 1)
	stale := sched.timers[0]

	// A newer user turn supersedes the first timer before it fires.
	e.UserTurn()
	require.Len(t, sched.timers, 2)
	assert.True(t, stale.stopped)

	// Even if the stale callback still runs (races the Stop), it must not
	// activate.
	stale.fn()
	assert.Empty(t, e.Active())

	// The owning timer still fires normally.
	sched.timers[1].fn()
	assert.Len(t, e.Active(), 1)

	// And firing it again is a no-op.
	sched.timers[1].fn()
	assert.Len(t, e.Active(), 1)
}

func TestEngine_TimeTriggerNotRearmedAfterUse(t *testing.T) {
	sched := &fakeScheduler{}
	e := NewEngine(hintsFixture(), WithTimerFactory(sched.factory))
	defer e.Close()

	e.UserTurn()
	sched.fireAll()
	e.Dismiss("hint-workaround")

	e.UserTurn()
	assert.Len(t, sched.timers, 1, "used time hints are not rescheduled")
}

func TestEngine_ManualRequest(t *testing.T) {
	e := NewEngine(hintsFixture(), WithManualPicker(func(n int) int { return 0 }))
	defer e.Close()

	assert.Equal(t, 2, e.RemainingManual())

	h, ok := e.RequestManual()
	require.True(t, ok)
	assert.Equal(t, "hint-process", h.ID)
	assert.Len(t, e.Active(), 1)

	e.Dismiss(h.ID)
	assert.Equal(t, 1, e.RemainingManual())

	h2, ok := e.RequestManual()
	require.True(t, ok)
	assert.Equal(t, "hint-impact", h2.ID)

	e.Dismiss(h2.ID)
	assert.Equal(t, 0, e.RemainingManual())

	_, ok = e.RequestManual()
	assert.False(t, ok, "no manual hints remain")
}

func TestEngine_NoHintsConfigured(t *testing.T) {
	e := NewEngine(nil)
	defer e.Close()

	e.ObserveAssistant([]domain.Message{{Role: domain.RoleAssistant, Content: "slow"}})
	e.UserTurn()
	_, ok := e.RequestManual()

	assert.False(t, ok)
	assert.Empty(t, e.Active())
	assert.Equal(t, 0, e.RemainingManual())
}

func TestEngine_ActivateCallback(t *testing.T) {
	var fired []string
	sched := &fakeScheduler{}
	e := NewEngine(hintsFixture(),
		WithTimerFactory(sched.factory),
		WithActivateFunc(func(h domain.Hint) { fired = append(fired, h.ID) }),
	)
	defer e.Close()

	e.ObserveAssistant([]domain.Message{{Role: domain.RoleAssistant, Content: "so manual"}})
	e.UserTurn()
	sched.fireAll()

	assert.Equal(t, []string{"hint-systems", "hint-workaround"}, fired)
}

func TestEngine_CloseCancelsTimers(t *testing.T) {
	sched := &fakeScheduler{}
	e := NewEngine(hintsFixture(), WithTimerFactory(sched.factory))

	e.UserTurn()
	require.Len(t, sched.timers, 1)

	e.Close()
	assert.True(t, sched.timers[0].stopped)

	// A callback racing Close must not mutate discarded state.
	sched.timers[0].fn()
	assert.Empty(t, e.Active())
}
