package domain

import "time"

// SavedSession is the one resumable in-progress interview per client. The
// transcript is the unit of persistence; all derived state (turn counts,
// completion, hints) is recomputed from it on resume.
type SavedSession struct {
	ScenarioID string    `json:"scenarioId"`
	Messages   []Message `json:"messages"`
	SavedAt    time.Time `json:"savedAt"`
}

// ResumeTTL is the default resume window after the last save. Stores may
// override it from configuration.
const ResumeTTL = 30 * time.Minute

// Resumable reports whether the saved session is still fresh at the given
// time. A non-positive ttl selects the default window. Expired sessions are
// treated as absent, not as errors.
func (s SavedSession) Resumable(now time.Time, ttl time.Duration) bool {
	if s.ScenarioID == "" || len(s.Messages) == 0 {
		return false
	}
	if ttl <= 0 {
		ttl = ResumeTTL
	}
	return now.Sub(s.SavedAt) <= ttl
}
