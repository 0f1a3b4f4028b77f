package scenario

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elicit-dev/elicit/internal/domain"
)

// seedFile is the on-disk layout of a scenario seed file.
type seedFile struct {
	Scenarios []domain.Scenario `yaml:"scenarios"`
}

// LoadSeedFile parses and validates a YAML scenario seed file.
func LoadSeedFile(path string) ([]domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("seed file %s contains no scenarios", path)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i := range f.Scenarios {
		sc := &f.Scenarios[i]
		if err := validateScenario(sc); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.ID, err)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("duplicate scenario id %q", sc.ID)
		}
		seen[sc.ID] = true
	}
	return f.Scenarios, nil
}

// Seed loads a seed file and upserts every scenario it contains.
func Seed(ctx context.Context, st *Store, path string) (int, error) {
	scenarios, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	for _, sc := range scenarios {
		if err := st.Put(ctx, sc); err != nil {
			return 0, err
		}
	}
	return len(scenarios), nil
}

func validateScenario(sc *domain.Scenario) error {
	if !ValidID(sc.ID) {
		return fmt.Errorf("invalid id (want lowercase slug, max 64 chars)")
	}
	if sc.Name == "" {
		return fmt.Errorf("missing name")
	}
	if sc.OpeningLine == "" {
		return fmt.Errorf("missing opening_line")
	}
	if sc.SystemPrompt == "" {
		return fmt.Errorf("missing system_prompt")
	}
	if sc.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative")
	}

	detailIDs := make(map[string]bool, len(sc.RequiredDetails))
	for _, d := range sc.RequiredDetails {
		if d.ID == "" {
			return fmt.Errorf("detail with empty id")
		}
		if detailIDs[d.ID] {
			return fmt.Errorf("duplicate detail id %q", d.ID)
		}
		detailIDs[d.ID] = true
		if len(d.Keywords) == 0 {
			return fmt.Errorf("detail %q has no keywords", d.ID)
		}
		switch d.Priority {
		case domain.PriorityRequired, domain.PriorityOptional:
		default:
			return fmt.Errorf("detail %q has unknown priority %q", d.ID, d.Priority)
		}
	}

	hintIDs := make(map[string]bool, len(sc.Hints))
	for _, h := range sc.Hints {
		if h.ID == "" {
			return fmt.Errorf("hint with empty id")
		}
		if hintIDs[h.ID] {
			return fmt.Errorf("duplicate hint id %q", h.ID)
		}
		hintIDs[h.ID] = true
		if h.Text == "" {
			return fmt.Errorf("hint %q has no text", h.ID)
		}
		switch h.Trigger {
		case domain.TriggerKeyword:
			if len(h.Keywords) == 0 {
				return fmt.Errorf("keyword hint %q has no keywords", h.ID)
			}
		case domain.TriggerTime:
			if h.DelaySeconds <= 0 {
				return fmt.Errorf("time hint %q needs a positive delay_seconds", h.ID)
			}
		case domain.TriggerManual:
		default:
			return fmt.Errorf("hint %q has unknown trigger %q", h.ID, h.Trigger)
		}
	}
	return nil
}
