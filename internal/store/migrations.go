package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create scenarios",
		SQL: `
			CREATE TABLE scenarios (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				role          TEXT NOT NULL,
				company       TEXT NOT NULL,
				avatar_seed   TEXT NOT NULL DEFAULT '',
				opening_line  TEXT NOT NULL,
				system_prompt TEXT NOT NULL,
				max_turns     INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE scenario_details (
				scenario_id  TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
				detail_id    TEXT NOT NULL,
				label        TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				keywords     TEXT NOT NULL,
				priority     TEXT NOT NULL,
				position     INTEGER NOT NULL,
				PRIMARY KEY (scenario_id, detail_id)
			);

			CREATE INDEX idx_details_scenario ON scenario_details (scenario_id, position);

			CREATE TABLE scenario_hints (
				scenario_id   TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
				hint_id       TEXT NOT NULL,
				trigger_kind  TEXT NOT NULL,
				keywords      TEXT NOT NULL DEFAULT '[]',
				delay_seconds INTEGER NOT NULL DEFAULT 0,
				text          TEXT NOT NULL,
				category      TEXT NOT NULL DEFAULT '',
				position      INTEGER NOT NULL,
				PRIMARY KEY (scenario_id, hint_id)
			);

			CREATE INDEX idx_hints_scenario ON scenario_hints (scenario_id, position);
		`,
	},
	{
		Version: 2,
		Name:    "create saved sessions",
		SQL: `
			CREATE TABLE saved_sessions (
				key          TEXT PRIMARY KEY,
				scenario_id  TEXT NOT NULL,
				messages     TEXT NOT NULL,
				saved_at     TEXT NOT NULL
			);

			CREATE INDEX idx_saved_sessions_saved_at ON saved_sessions (saved_at);
		`,
	},
}
