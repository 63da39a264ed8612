package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/protocol"
)

// ErrTrialNotFound is returned by GetTrial for an unknown id.
var ErrTrialNotFound = errors.New("trial not found")

// TrialStore persists trial results in SQLite.
type TrialStore struct {
	db        *sql.DB
	maxTrials int
}

// ModulationStats aggregates stored trials for one modulation.
type ModulationStats struct {
	Modulation   string  `json:"modulation"`
	Trials       int     `json:"trials"`
	FramesOK     int     `json:"framesOk"`
	Symbols      int64   `json:"symbols"`
	SymbolErrors int64   `json:"symbolErrors"`
	BitErrors    int64   `json:"bitErrors"`
	SER          float64 `json:"ser"`
	AvgSNRDB     float64 `json:"avgSnrDb"`
}

// NewTrialStore opens (or creates) the database at dbPath. maxTrials <= 0
// keeps every trial.
func NewTrialStore(dbPath string, maxTrials int) (*TrialStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	ts := &TrialStore{db: db, maxTrials: maxTrials}
	if err := ts.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info("storage", "trial store opened", logging.Fields{
		"path":      dbPath,
		"maxTrials": maxTrials,
	})
	return ts, nil
}

func (ts *TrialStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS trials (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			modulation TEXT NOT NULL,
			noiseless BOOLEAN NOT NULL DEFAULT 0,
			snr_db REAL NOT NULL DEFAULT 0,
			measured_snr_db REAL,
			payload_bytes INTEGER NOT NULL,
			symbols INTEGER NOT NULL,
			symbol_errors INTEGER NOT NULL,
			bit_errors INTEGER NOT NULL,
			ser REAL NOT NULL,
			ber REAL NOT NULL,
			frame_ok BOOLEAN NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ns INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_trials_created_at ON trials(created_at);
		CREATE INDEX IF NOT EXISTS idx_trials_modulation ON trials(modulation);
	`
	_, err := ts.db.Exec(schema)
	return err
}

// SaveTrial stores result and prunes the oldest trials beyond the limit.
func (ts *TrialStore) SaveTrial(result *protocol.TrialResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("trial result has no id")
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var measured sql.NullFloat64
	if result.MeasuredSNR != nil {
		measured = sql.NullFloat64{Float64: *result.MeasuredSNR, Valid: true}
	}

	query := `
		INSERT INTO trials (
			id, created_at, modulation, noiseless, snr_db, measured_snr_db,
			payload_bytes, symbols, symbol_errors, bit_errors, ser, ber,
			frame_ok, error, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		result.ID, result.CreatedAt.UTC(), result.Modulation, result.Noiseless,
		result.SNRDB, measured, result.PayloadBytes, result.Symbols,
		result.SymbolErrors, result.BitErrors, result.SER, result.BER,
		result.FrameOK, result.Error, int64(result.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}

	if err := ts.pruneTrials(tx); err != nil {
		logging.Warnf("storage", "failed to prune old trials: %v", err)
	}

	return tx.Commit()
}

// pruneTrials removes the oldest trials beyond maxTrials.
func (ts *TrialStore) pruneTrials(tx *sql.Tx) error {
	if ts.maxTrials <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM trials").Scan(&count); err != nil {
		return err
	}
	if count <= ts.maxTrials {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM trials WHERE id NOT IN (
			SELECT id FROM trials ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, ts.maxTrials)
	if err != nil {
		return err
	}

	logging.Debugf("storage", "pruned %d trials", count-ts.maxTrials)
	return nil
}

const trialColumns = `
	id, created_at, modulation, noiseless, snr_db, measured_snr_db,
	payload_bytes, symbols, symbol_errors, bit_errors, ser, ber,
	frame_ok, error, duration_ns
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrial(row rowScanner) (*protocol.TrialResult, error) {
	var (
		r        protocol.TrialResult
		measured sql.NullFloat64
		duration int64
	)
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.Modulation, &r.Noiseless, &r.SNRDB, &measured,
		&r.PayloadBytes, &r.Symbols, &r.SymbolErrors, &r.BitErrors, &r.SER, &r.BER,
		&r.FrameOK, &r.Error, &duration,
	)
	if err != nil {
		return nil, err
	}
	if measured.Valid {
		v := measured.Float64
		r.MeasuredSNR = &v
	}
	r.Duration = time.Duration(duration)
	return &r, nil
}

// GetTrial returns one trial by id.
func (ts *TrialStore) GetTrial(id string) (*protocol.TrialResult, error) {
	row := ts.db.QueryRow("SELECT "+trialColumns+" FROM trials WHERE id = ?", id)
	r, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTrialNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trial: %w", err)
	}
	return r, nil
}

// ListTrials returns up to limit trials, newest first. An empty modulation
// matches every trial.
func (ts *TrialStore) ListTrials(limit int, modulation string) ([]*protocol.TrialResult, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + trialColumns + " FROM trials"
	args := []any{}
	if modulation != "" {
		query += " WHERE modulation = ?"
		args = append(args, modulation)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := ts.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []*protocol.TrialResult
	for rows.Next() {
		r, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trials = append(trials, r)
	}
	return trials, rows.Err()
}

// Stats aggregates stored trials per modulation, ordered by name.
func (ts *TrialStore) Stats() ([]ModulationStats, error) {
	rows, err := ts.db.Query(`
		SELECT modulation,
			COUNT(*),
			COALESCE(SUM(CASE WHEN frame_ok THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(symbols), 0),
			COALESCE(SUM(symbol_errors), 0),
			COALESCE(SUM(bit_errors), 0),
			COALESCE(AVG(CASE WHEN noiseless THEN NULL ELSE snr_db END), 0)
		FROM trials
		GROUP BY modulation
		ORDER BY modulation
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []ModulationStats
	for rows.Next() {
		var s ModulationStats
		if err := rows.Scan(&s.Modulation, &s.Trials, &s.FramesOK, &s.Symbols,
			&s.SymbolErrors, &s.BitErrors, &s.AvgSNRDB); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		if s.Symbols > 0 {
			s.SER = float64(s.SymbolErrors) / float64(s.Symbols)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Count returns the number of stored trials.
func (ts *TrialStore) Count() (int, error) {
	var count int
	err := ts.db.QueryRow("SELECT COUNT(*) FROM trials").Scan(&count)
	return count, err
}

// Close closes the database.
func (ts *TrialStore) Close() error {
	return ts.db.Close()
}
