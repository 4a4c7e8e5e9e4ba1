// Package persistence stores runs, their agents and every emitted path in
// SQLite so a run can be inspected or replayed later.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/relief-mobility/internal/agents"
	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/world"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Run describes one stored simulation run.
type Run struct {
	ID        string  `db:"id" json:"id"`
	Scenario  string  `db:"scenario" json:"scenario"`
	Seed      int64   `db:"seed" json:"seed"`
	Days      int     `db:"days" json:"days"`
	DayLength float64 `db:"day_length" json:"day_length"`
	Started   string  `db:"started" json:"started"`
}

// NewRun returns a run record with a fresh id.
func NewRun(scenario string, seed int64, days int, dayLength float64) Run {
	return Run{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Seed:      seed,
		Days:      days,
		DayLength: dayLength,
		Started:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		days INTEGER NOT NULL,
		day_length REAL NOT NULL,
		started TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		grp INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		paths INTEGER NOT NULL,
		halted INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS paths (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		agent TEXT NOT NULL,
		role TEXT NOT NULL,
		activity TEXT NOT NULL,
		day INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		speed REAL NOT NULL,
		waypoints_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		sim_time REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_paths_agent ON paths(run_id, agent_id);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, sim_time);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores a run record.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO runs
		(id, scenario, seed, days, day_length, started)
		VALUES (:id, :scenario, :seed, :days, :day_length, :started)`, r)
	return err
}

// GetRun loads one run record.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, scenario, seed, days, day_length, started FROM runs WHERE id = ?", id)
	return r, err
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, scenario, seed, days, day_length, started FROM runs ORDER BY started DESC, rowid DESC LIMIT 1")
	return r, err
}

// SaveAgents writes the agents of a run (full replace).
func (db *DB) SaveAgents(runID string, agentList []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(run_id, id, name, role, grp, pos_x, pos_y, paths, halted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		halted := 0
		var errText *string
		if a.Halted {
			halted = 1
		}
		if a.Err != nil {
			s := a.Err.Error()
			errText = &s
		}
		if _, err := stmt.Exec(runID, a.ID, a.Name, a.Role.String(), a.Group,
			a.Position.X, a.Position.Y, a.Paths, halted, errText); err != nil {
			return fmt.Errorf("agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SavePaths appends emitted paths.
func (db *DB) SavePaths(runID string, events []engine.PathEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO paths
		(run_id, seq, agent_id, agent, role, activity, day, sim_time, speed, waypoints_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		wps, err := json.Marshal(ev.Waypoints)
		if err != nil {
			return fmt.Errorf("path %d: %w", ev.Seq, err)
		}
		if _, err := stmt.Exec(runID, ev.Seq, ev.AgentID, ev.Agent, ev.Role, ev.Activity,
			ev.Day, ev.Time, ev.Speed, string(wps)); err != nil {
			return fmt.Errorf("path %d: %w", ev.Seq, err)
		}
	}

	return tx.Commit()
}

type pathRow struct {
	Seq       uint64  `db:"seq"`
	AgentID   uint32  `db:"agent_id"`
	Agent     string  `db:"agent"`
	Role      string  `db:"role"`
	Activity  string  `db:"activity"`
	Day       int     `db:"day"`
	Time      float64 `db:"sim_time"`
	Speed     float64 `db:"speed"`
	Waypoints string  `db:"waypoints_json"`
}

// LoadPaths returns every stored path of a run in emission order.
func (db *DB) LoadPaths(runID string) ([]engine.PathEvent, error) {
	var rows []pathRow
	err := db.conn.Select(&rows, `SELECT seq, agent_id, agent, role, activity, day, sim_time, speed, waypoints_json
		FROM paths WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.PathEvent, len(rows))
	for i, r := range rows {
		var wps []world.Coord
		if err := json.Unmarshal([]byte(r.Waypoints), &wps); err != nil {
			return nil, fmt.Errorf("path %d: %w", r.Seq, err)
		}
		out[i] = engine.PathEvent{
			Seq:       r.Seq,
			AgentID:   agents.AgentID(r.AgentID),
			Agent:     r.Agent,
			Role:      r.Role,
			Activity:  r.Activity,
			Day:       r.Day,
			Time:      r.Time,
			Speed:     r.Speed,
			Waypoints: wps,
		}
	}
	return out, nil
}

// CountPaths returns the number of stored paths of a run.
func (db *DB) CountPaths(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM paths WHERE run_id = ?", runID)
	return n, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, sim_time, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Time, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT sim_time AS time, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// Recorder buffers emitted paths and writes them at every checkpoint.
type Recorder struct {
	db      *DB
	runID   string
	pending []engine.PathEvent
	saved   int
	events  uint64 // events of the simulation already stored
}

// NewRecorder creates a recorder for a stored run.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// Record implements engine.PathSink.
func (r *Recorder) Record(ev engine.PathEvent) error {
	r.pending = append(r.pending, ev)
	return nil
}

// Checkpoint flushes buffered paths and replaces the stored agent state.
func (r *Recorder) Checkpoint(sim *engine.Simulation, now float64) error {
	if err := r.db.SavePaths(r.runID, r.pending); err != nil {
		return fmt.Errorf("save paths: %w", err)
	}
	r.saved += len(r.pending)
	r.pending = r.pending[:0]

	if err := r.db.SaveAgents(r.runID, sim.Agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}

	events, total := sim.EventsSince(r.events)
	if err := r.db.SaveEvents(r.runID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	r.events = total

	if err := r.db.SaveMeta(r.runID, "last_time", fmt.Sprintf("%.0f", now)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("checkpoint saved", "run", r.runID, "sim_time", engine.SimTime(now, sim.DayLength), "paths", r.saved)
	return nil
}

// Saved returns the number of paths written so far.
func (r *Recorder) Saved() int { return r.saved }
