// Package interview holds the session core: completion tracking, the
// end-meeting control protocol, turn-limit lifecycle, and hint triggers.
// Everything here is derived fresh from the transcript; nothing raises on
// malformed input, it just fails to match.
package interview

import (
	"math"
	"strings"

	"github.com/elicit-dev/elicit/internal/domain"
)

// DetailStatus reports whether one required detail has been surfaced by the
// trainee's own questions, and which transcript message did it.
type DetailStatus struct {
	Detail       domain.RequiredDetail `json:"detail"`
	Obtained     bool                  `json:"obtained"`
	MessageIndex int                   `json:"messageIndex"` // index into the full transcript, -1 if not obtained
}

// CompletionStatus aggregates DetailStatus across a scenario.
type CompletionStatus struct {
	Details             []DetailStatus `json:"details"`
	Obtained            []string       `json:"obtained"`
	Missing             []string       `json:"missing"`
	RequiredObtained    int            `json:"requiredObtained"`
	RequiredTotal       int            `json:"requiredTotal"`
	Percentage          int            `json:"percentage"`
	AllRequiredComplete bool           `json:"allRequiredComplete"`
}

// CheckDetailObtained scans user messages in transcript order and reports
// whether any of the detail's keywords appears in one (case-insensitive
// substring match, earliest match wins). Only user messages count: the point
// is to score the trainee's questions, not the persona's disclosures. The
// returned index is into the full transcript.
func CheckDetailObtained(detail domain.RequiredDetail, messages []domain.Message) (bool, int) {
	for i, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		content := strings.ToLower(m.Content)
		for _, kw := range detail.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(kw)) {
				return true, i
			}
		}
	}
	return false, -1
}

// GetCompletionStatus derives the full completion picture for a scenario's
// detail list against a transcript. With zero required details the session
// is vacuously required-complete but reports percentage 0, since there is
// no denominator.
func GetCompletionStatus(details []domain.RequiredDetail, messages []domain.Message) CompletionStatus {
	status := CompletionStatus{
		Details: make([]DetailStatus, 0, len(details)),
	}

	for _, d := range details {
		obtained, idx := CheckDetailObtained(d, messages)
		status.Details = append(status.Details, DetailStatus{
			Detail:       d,
			Obtained:     obtained,
			MessageIndex: idx,
		})
		if obtained {
			status.Obtained = append(status.Obtained, d.ID)
		} else {
			status.Missing = append(status.Missing, d.ID)
		}
		if d.Priority == domain.PriorityRequired {
			status.RequiredTotal++
			if obtained {
				status.RequiredObtained++
			}
		}
	}

	if status.RequiredTotal > 0 {
		status.Percentage = int(math.Round(100 * float64(status.RequiredObtained) / float64(status.RequiredTotal)))
	}
	status.AllRequiredComplete = status.RequiredObtained == status.RequiredTotal

	return status
}

// NewlyObtainedDetails returns the details obtained in cur but not in prev.
// A nil prev means this is the first evaluation, so every currently obtained
// detail counts as new. Pure; safe to call on every transcript change.
func NewlyObtainedDetails(prev *CompletionStatus, cur CompletionStatus) []domain.RequiredDetail {
	var seen map[string]struct{}
	if prev != nil {
		seen = make(map[string]struct{}, len(prev.Obtained))
		for _, id := range prev.Obtained {
			seen[id] = struct{}{}
		}
	}

	var fresh []domain.RequiredDetail
	for _, ds := range cur.Details {
		if !ds.Obtained {
			continue
		}
		if _, ok := seen[ds.Detail.ID]; ok {
			continue
		}
		fresh = append(fresh, ds.Detail)
	}
	return fresh
}
