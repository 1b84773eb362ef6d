package recorder

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the cycle log to a SQLite database.
type SQLiteRecorder struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the status server read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id             TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			action         TEXT NOT NULL,
			score          REAL,
			base_score     REAL,
			boost          REAL,
			alert_state    TEXT,
			days_remaining INTEGER,
			budget_risk    REAL,
			stress         REAL,
			proximity      REAL,
			fear           REAL,
			position       TEXT,
			sell_origin    TEXT,
			defaulted      TEXT,
			failed_symbols TEXT,
			reasons        TEXT,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS contributions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT NOT NULL REFERENCES cycles(id),
			name      TEXT NOT NULL,
			score     REAL,
			weight    REAL,
			weighted  REAL,
			defaulted INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contrib_cycle ON contributions(cycle_id)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind      TEXT,
			level     TEXT,
			score     REAL,
			delivered INTEGER,
			note      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordCycle appends one cycle and its composite breakdown in a single transaction.
func (r *SQLiteRecorder) RecordCycle(rec *CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var (
		action, alertState, reasons, defaulted string
		score, base, boost                     float64
		days                                   *int
		budget, stress, proximity, fear        *float64
	)
	if sig := rec.Signal; sig != nil {
		action = string(sig.Action)
		score = sig.Score
		base = sig.Composite.Base
		boost = sig.Composite.Boost
		alertState = string(sig.AlertState)
		reasons = strings.Join(sig.Reasons, "\n")
		defaulted = strings.Join(sig.Composite.Defaulted, ",")
		dc := sig.DebtCeiling
		days = &dc.DaysRemaining
		budget, stress, proximity, fear = &dc.BudgetRiskScore, &dc.StressScore, &dc.ProximityScore, &dc.FearScore
	} else {
		action = "ERROR"
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`INSERT INTO cycles
		(id, timestamp, action, score, base_score, boost, alert_state,
		 days_remaining, budget_risk, stress, proximity, fear,
		 position, sell_origin, defaulted, failed_symbols, reasons, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, ts.Unix(), action, score, base, boost, alertState,
		days, budget, stress, proximity, fear,
		string(rec.Position.Position), string(rec.Position.SellOrigin),
		defaulted, strings.Join(rec.Failed, ","), reasons, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	if rec.Signal != nil {
		for _, c := range rec.Signal.Composite.Breakdown {
			if _, err := tx.Exec(`INSERT INTO contributions
				(cycle_id, name, score, weight, weighted, defaulted)
				VALUES (?,?,?,?,?,?)`,
				rec.ID, c.Name, c.Score, c.Weight, c.Weighted, c.Defaulted,
			); err != nil {
				return fmt.Errorf("insert contribution %s: %w", c.Name, err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alerts
		(timestamp, kind, level, score, delivered, note)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Kind, evt.Level, evt.Score, evt.Delivered, evt.Note,
	)
	return err
}

// Recent returns the latest n cycles, newest first.
func (r *SQLiteRecorder) Recent(n int) ([]CycleRow, error) {
	var rows []CycleRow
	err := r.db.Select(&rows, `SELECT
		id, timestamp, action, COALESCE(score, 0) AS score, COALESCE(base_score, 0) AS base_score,
		COALESCE(boost, 0) AS boost, COALESCE(alert_state, '') AS alert_state,
		days_remaining, budget_risk, COALESCE(position, '') AS position,
		COALESCE(sell_origin, '') AS sell_origin, COALESCE(defaulted, '') AS defaulted,
		COALESCE(failed_symbols, '') AS failed_symbols, COALESCE(reasons, '') AS reasons,
		COALESCE(error, '') AS error
		FROM cycles ORDER BY timestamp DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("select recent cycles: %w", err)
	}
	return rows, nil
}

// Contributions returns the composite breakdown of one cycle in insertion order.
func (r *SQLiteRecorder) Contributions(cycleID string) ([]ContributionRow, error) {
	var rows []ContributionRow
	err := r.db.Select(&rows, `SELECT cycle_id, name, score, weight, weighted, defaulted
		FROM contributions WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("select contributions: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
