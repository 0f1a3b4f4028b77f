package interview

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/elicit-dev/elicit/internal/domain"
)

// ActiveHint is a triggered, not-yet-dismissed hint in a session.
type ActiveHint struct {
	Hint        domain.Hint `json:"hint"`
	TriggeredAt time.Time   `json:"triggeredAt"`
	Dismissed   bool        `json:"dismissed"`
}

// stopper abstracts time.AfterFunc's cancel handle so tests can drive
// time-based triggers synchronously.
type stopper interface {
	Stop() bool
}

type timerFactory func(d time.Duration, fn func()) stopper

func stdTimer(d time.Duration, fn func()) stopper {
	return time.AfterFunc(d, fn)
}

// armedTimer is one scheduled time-trigger. The generation ties a fire
// callback to the user turn that armed it.
type armedTimer struct {
	stop stopper
	gen  uint64
}

// EngineOption configures a hint Engine.
type EngineOption func(*Engine)

// WithActivateFunc registers a callback invoked whenever a hint activates,
// including asynchronously from a time trigger. Useful for pushing hints to
// a live client. The callback runs under the engine lock and must not call
// back into the engine.
func WithActivateFunc(fn func(domain.Hint)) EngineOption {
	return func(e *Engine) { e.onActivate = fn }
}

// WithTimerFactory overrides timer creation (tests).
func WithTimerFactory(tf func(d time.Duration, fn func()) stopper) EngineOption {
	return func(e *Engine) { e.newTimer = tf }
}

// WithManualPicker overrides the random pick among unused manual hints
// (tests).
func WithManualPicker(pick func(n int) int) EngineOption {
	return func(e *Engine) { e.pick = pick }
}

// Engine evaluates a scenario's hint triggers against the live session.
// Keyword triggers react to recent assistant output, time triggers to
// silence since the last user turn, manual triggers to explicit requests.
// Dismissed hints are retired for the whole session.
type Engine struct {
	mu     sync.Mutex
	hints  []domain.Hint
	active []ActiveHint
	used   map[string]struct{}

	// One outstanding timer per time-trigger hint id. A new user turn
	// supersedes them: the old timer is stopped before a fresh one is
	// armed, and the generation check keeps a stale callback that raced
	// the Stop from double-firing.
	timers map[string]*armedTimer
	gen    uint64
	closed bool

	newTimer   timerFactory
	pick       func(n int) int
	onActivate func(domain.Hint)
	now        func() time.Time
}

// NewEngine creates a hint engine for a scenario's hint list. An empty list
// is fine; the engine just never activates anything.
func NewEngine(hints []domain.Hint, opts ...EngineOption) *Engine {
	e := &Engine{
		hints:    hints,
		used:     make(map[string]struct{}),
		timers:   make(map[string]*armedTimer),
		newTimer: stdTimer,
		pick:     rand.IntN,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ObserveAssistant re-evaluates keyword triggers against the transcript.
// The match window is the lowercased concatenation of the last two
// assistant messages. Activation is idempotent and skips used hints.
func (e *Engine) ObserveAssistant(messages []domain.Message) {
	window := recentAssistantWindow(messages)
	if window == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.hints {
		if h.Trigger != domain.TriggerKeyword || len(h.Keywords) == 0 {
			continue
		}
		if e.retiredLocked(h.ID) {
			continue
		}
		for _, kw := range h.Keywords {
			if kw != "" && strings.Contains(window, strings.ToLower(kw)) {
				e.activateLocked(h)
				break
			}
		}
	}
}

// UserTurn resets the time-trigger clock: outstanding timers from the
// previous turn are cancelled and each unused time hint gets one fresh
// timer.
func (e *Engine) UserTurn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	for id, t := range e.timers {
		t.stop.Stop()
		delete(e.timers, id)
	}

	for _, h := range e.hints {
		if h.Trigger != domain.TriggerTime || h.DelaySeconds <= 0 {
			continue
		}
		if e.retiredLocked(h.ID) {
			continue
		}
		e.gen++
		hint, gen := h, e.gen
		at := &armedTimer{gen: gen}
		at.stop = e.newTimer(time.Duration(h.DelaySeconds)*time.Second, func() {
			e.fireTimeHint(hint, gen)
		})
		e.timers[h.ID] = at
	}
}

func (e *Engine) fireTimeHint(h domain.Hint, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	// A timer superseded by a newer user turn must not activate, even if
	// its callback raced the Stop.
	at, owned := e.timers[h.ID]
	if !owned || at.gen != gen {
		return
	}
	delete(e.timers, h.ID)
	if e.retiredLocked(h.ID) {
		return
	}
	e.activateLocked(h)
}

// RequestManual activates one unused manual hint, picked uniformly at
// random. Returns false when none remain.
func (e *Engine) RequestManual() (domain.Hint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var candidates []domain.Hint
	for _, h := range e.hints {
		if h.Trigger == domain.TriggerManual && !e.retiredLocked(h.ID) {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return domain.Hint{}, false
	}
	h := candidates[e.pick(len(candidates))]
	e.activateLocked(h)
	return h, true
}

// Dismiss marks an active hint as used. A used hint id cannot retrigger for
// the rest of the session, regardless of trigger kind.
func (e *Engine) Dismiss(hintID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.active {
		if e.active[i].Hint.ID == hintID {
			e.active[i].Dismissed = true
		}
	}
	e.used[hintID] = struct{}{}
	if t, ok := e.timers[hintID]; ok {
		t.stop.Stop()
		delete(e.timers, hintID)
	}
}

// Active returns the currently visible (triggered, undismissed) hints.
func (e *Engine) Active() []ActiveHint {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ActiveHint
	for _, ah := range e.active {
		if !ah.Dismissed {
			out = append(out, ah)
		}
	}
	return out
}

// RemainingManual counts the manual hints still available to request.
func (e *Engine) RemainingManual() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, h := range e.hints {
		if h.Trigger == domain.TriggerManual {
			if _, ok := e.used[h.ID]; !ok {
				n++
			}
		}
	}
	return n
}

// Close cancels all outstanding timers. The engine activates nothing after
// Close; call it when the owning session is torn down so stale callbacks
// cannot touch discarded state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, t := range e.timers {
		t.stop.Stop()
		delete(e.timers, id)
	}
}

// retiredLocked reports whether the hint is used or already active.
func (e *Engine) retiredLocked(hintID string) bool {
	if _, ok := e.used[hintID]; ok {
		return true
	}
	for _, ah := range e.active {
		if ah.Hint.ID == hintID {
			return true
		}
	}
	return false
}

func (e *Engine) activateLocked(h domain.Hint) {
	e.active = append(e.active, ActiveHint{Hint: h, TriggeredAt: e.now()})
	if e.onActivate != nil {
		e.onActivate(h)
	}
}

// recentAssistantWindow lowercases and joins the last two assistant
// messages of a transcript.
func recentAssistantWindow(messages []domain.Message) string {
	var last []string
	for _, m := range messages {
		if m.Role == domain.RoleAssistant {
			last = append(last, strings.ToLower(m.Content))
		}
	}
	if len(last) > 2 {
		last = last[len(last)-2:]
	}
	return strings.Join(last, " ")
}
