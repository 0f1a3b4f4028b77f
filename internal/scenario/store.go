// Package scenario loads and serves interview scenario definitions.
package scenario

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/elicit-dev/elicit/internal/domain"
	"github.com/elicit-dev/elicit/internal/store"
)

// ErrNotFound is returned when no scenario exists with the requested ID.
var ErrNotFound = errors.New("scenario not found")

// idPattern restricts scenario IDs to URL-safe slugs.
var idPattern = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// ValidID reports whether id is a well-formed scenario ID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Store reads scenarios from SQLite.
type Store struct {
	db *store.DB
}

// NewStore creates a scenario store over the given database.
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// GetByID loads one scenario with its details and hints. Returns ErrNotFound
// when the ID does not exist or is malformed.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Scenario, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	var sc domain.Scenario
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT id, name, role, company, avatar_seed, opening_line, system_prompt, max_turns
		 FROM scenarios WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.Name, &sc.Role, &sc.Company, &sc.AvatarSeed, &sc.OpeningLine, &sc.SystemPrompt, &sc.MaxTurns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading scenario %s: %w", id, err)
	}

	if sc.RequiredDetails, err = s.loadDetails(ctx, id); err != nil {
		return nil, err
	}
	if sc.Hints, err = s.loadHints(ctx, id); err != nil {
		return nil, err
	}
	return &sc, nil
}

// List returns all scenarios without their details and hints, ordered by name.
func (s *Store) List(ctx context.Context) ([]domain.Scenario, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT id, name, role, company, avatar_seed, opening_line, system_prompt, max_turns
		 FROM scenarios ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}
	defer rows.Close()

	var out []domain.Scenario
	for rows.Next() {
		var sc domain.Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Role, &sc.Company, &sc.AvatarSeed, &sc.OpeningLine, &sc.SystemPrompt, &sc.MaxTurns); err != nil {
			return nil, fmt.Errorf("scanning scenario: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Put inserts or replaces a scenario with all its details and hints.
func (s *Store) Put(ctx context.Context, sc domain.Scenario) error {
	if !ValidID(sc.ID) {
		return fmt.Errorf("invalid scenario id %q", sc.ID)
	}

	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put scenario: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, role, company, avatar_seed, opening_line, system_prompt, max_turns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			company = excluded.company,
			avatar_seed = excluded.avatar_seed,
			opening_line = excluded.opening_line,
			system_prompt = excluded.system_prompt,
			max_turns = excluded.max_turns,
			updated_at = datetime('now')`,
		sc.ID, sc.Name, sc.Role, sc.Company, sc.AvatarSeed, sc.OpeningLine, sc.SystemPrompt, sc.MaxTurns,
	); err != nil {
		return fmt.Errorf("upserting scenario %s: %w", sc.ID, err)
	}

	// Details and hints are replaced wholesale on every put.
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_details WHERE scenario_id = ?`, sc.ID); err != nil {
		return fmt.Errorf("clearing details for %s: %w", sc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_hints WHERE scenario_id = ?`, sc.ID); err != nil {
		return fmt.Errorf("clearing hints for %s: %w", sc.ID, err)
	}

	for i, d := range sc.RequiredDetails {
		keywords, err := json.Marshal(d.Keywords)
		if err != nil {
			return fmt.Errorf("encoding keywords for detail %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_details (scenario_id, detail_id, label, description, keywords, priority, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, d.ID, d.Label, d.Description, string(keywords), string(d.Priority), i,
		); err != nil {
			return fmt.Errorf("inserting detail %s: %w", d.ID, err)
		}
	}

	for i, h := range sc.Hints {
		keywords, err := json.Marshal(h.Keywords)
		if err != nil {
			return fmt.Errorf("encoding keywords for hint %s: %w", h.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_hints (scenario_id, hint_id, trigger_kind, keywords, delay_seconds, text, category, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, h.ID, string(h.Trigger), string(keywords), h.DelaySeconds, h.Text, string(h.Category), i,
		); err != nil {
			return fmt.Errorf("inserting hint %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) loadDetails(ctx context.Context, scenarioID string) ([]domain.RequiredDetail, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT detail_id, label, description, keywords, priority
		 FROM scenario_details WHERE scenario_id = ? ORDER BY position`, scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading details for %s: %w", scenarioID, err)
	}
	defer rows.Close()

	var out []domain.RequiredDetail
	for rows.Next() {
		var d domain.RequiredDetail
		var keywords, priority string
		if err := rows.Scan(&d.ID, &d.Label, &d.Description, &keywords, &priority); err != nil {
			return nil, fmt.Errorf("scanning detail: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords for detail %s: %w", d.ID, err)
		}
		d.Priority = domain.DetailPriority(priority)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) loadHints(ctx context.Context, scenarioID string) ([]domain.Hint, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT hint_id, trigger_kind, keywords, delay_seconds, text, category
		 FROM scenario_hints WHERE scenario_id = ? ORDER BY position`, scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading hints for %s: %w", scenarioID, err)
	}
	defer rows.Close()

	var out []domain.Hint
	for rows.Next() {
		var h domain.Hint
		var trigger, keywords, category string
		if err := rows.Scan(&h.ID, &trigger, &keywords, &h.DelaySeconds, &h.Text, &category); err != nil {
			return nil, fmt.Errorf("scanning hint: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &h.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords for hint %s: %w", h.ID, err)
		}
		h.Trigger = domain.HintTrigger(trigger)
		h.Category = domain.HintCategory(category)
		out = append(out, h)
	}
	return out, rows.Err()
}
