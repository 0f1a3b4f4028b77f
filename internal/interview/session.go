package interview

import (
	"github.com/elicit-dev/elicit/internal/domain"
)

// SessionState is the derived lifecycle view of a session. It is recomputed
// from the transcript on every read; only the control-signal latch carries
// independent state, because once the end marker has been observed the
// displayed content may no longer contain it.
type SessionState struct {
	UserTurnCount        int  `json:"userTurnCount"`
	MaxTurns             int  `json:"maxTurns"`
	EndedByControlSignal bool `json:"endedByControlSignal"`
	IsEnded              bool `json:"isEnded"`
}

// Session owns one interview transcript and its lifecycle. Appends are the
// only mutation; every other accessor derives from the message list.
type Session struct {
	scenario domain.Scenario
	messages []domain.Message

	// Latched true the first time an assistant message carries the end
	// marker; never cleared within the session.
	endedByControlSignal bool
}

// NewSession starts a fresh session for a scenario, seeded with the
// persona's opening line.
func NewSession(sc domain.Scenario, openingMessageID string) *Session {
	s := &Session{scenario: sc}
	if sc.OpeningLine != "" {
		s.messages = append(s.messages, domain.Message{
			ID:      openingMessageID,
			Role:    domain.RoleAssistant,
			Content: sc.OpeningLine,
		})
	}
	return s
}

// ResumeSession rebuilds a session from a persisted transcript, verbatim.
// All derived state comes back from the messages; assistant messages are
// rescanned so a previously observed end marker re-latches.
func ResumeSession(sc domain.Scenario, messages []domain.Message) *Session {
	s := &Session{
		scenario: sc,
		messages: append([]domain.Message(nil), messages...),
	}
	for _, m := range messages {
		if m.Role == domain.RoleAssistant && ParseEndMeeting(m.Content).MeetingEnded {
			s.endedByControlSignal = true
		}
	}
	return s
}

// Append adds a message to the transcript. Assistant messages must be fully
// settled (stream complete) before being appended; the end-marker check runs
// here, once, and latches.
func (s *Session) Append(msg domain.Message) {
	s.messages = append(s.messages, msg)
	if msg.Role == domain.RoleAssistant && ParseEndMeeting(msg.Content).MeetingEnded {
		s.endedByControlSignal = true
	}
}

// Messages returns a snapshot copy of the transcript.
func (s *Session) Messages() []domain.Message {
	return append([]domain.Message(nil), s.messages...)
}

// Scenario returns the scenario the session was started from.
func (s *Session) Scenario() domain.Scenario {
	return s.scenario
}

// MaxTurns returns the scenario's turn limit, falling back to the default.
func (s *Session) MaxTurns() int {
	if s.scenario.MaxTurns > 0 {
		return s.scenario.MaxTurns
	}
	return domain.DefaultMaxTurns
}

// State derives the current lifecycle state. A session is ended when the
// user has spent all turns or the persona has ended the meeting, whichever
// comes first. Ended is terminal: callers must stop accepting input.
func (s *Session) State() SessionState {
	turns := domain.UserTurnCount(s.messages)
	max := s.MaxTurns()
	return SessionState{
		UserTurnCount:        turns,
		MaxTurns:             max,
		EndedByControlSignal: s.endedByControlSignal,
		IsEnded:              turns >= max || s.endedByControlSignal,
	}
}

// AcceptingInput reports whether another user turn may be appended.
func (s *Session) AcceptingInput() bool {
	return !s.State().IsEnded
}

// Completion derives the detail-completion status for the current transcript.
func (s *Session) Completion() CompletionStatus {
	return GetCompletionStatus(s.scenario.RequiredDetails, s.messages)
}
