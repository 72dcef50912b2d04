package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"agentsim/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_actions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	id          TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	type        TEXT NOT NULL,
	description TEXT NOT NULL,
	data        TEXT,
	sim_time    INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_actions_run ON agent_actions(run_id, seq);
`

// Open opens (or creates) an action database at path. Use ":memory:" in tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open action database: %w", err)
	}
	// SQLite works best with a single writer; it also keeps :memory: on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize action schema: %w", err)
	}
	return db, nil
}

// Store implements audit.Store on a shared database. Each simulation run
// writes under its own run id so parallel runs can share one file.
type Store struct {
	db    *sql.DB
	runID string
}

func New(db *sql.DB, runID string) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	return &Store{db: db, runID: runID}, nil
}

func (s *Store) Append(ctx context.Context, action audit.Action) error {
	var data []byte
	if len(action.Data) > 0 {
		var err error
		data, err = json.Marshal(action.Data)
		if err != nil {
			return fmt.Errorf("marshal action data: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_actions (run_id, id, agent_id, type, description, data, sim_time, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID,
		action.ID,
		action.AgentID,
		string(action.Type),
		action.Description,
		nullableJSON(data),
		action.Timestamp,
		action.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]audit.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, type, description, data, sim_time, recorded_at
		FROM agent_actions
		WHERE run_id = ?
		ORDER BY seq`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *Store) ListByAgent(ctx context.Context, agentID string) ([]audit.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, type, description, data, sim_time, recorded_at
		FROM agent_actions
		WHERE run_id = ? AND agent_id = ?
		ORDER BY seq`, s.runID, agentID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_actions WHERE run_id = ?`, s.runID); err != nil {
		return fmt.Errorf("delete actions: %w", err)
	}
	return nil
}

func scanActions(rows *sql.Rows) ([]audit.Action, error) {
	var actions []audit.Action
	for rows.Next() {
		var (
			a          audit.Action
			actionType string
			data       sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&a.ID, &a.AgentID, &actionType, &a.Description, &data, &a.Timestamp, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Type = audit.ActionType(actionType)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &a.Data); err != nil {
				return nil, fmt.Errorf("unmarshal action data: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		a.RecordedAt = ts
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
