package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("storage: run not found")

// SQLiteStore keeps runs and their samples in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = discardLogger()
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	if meta.ID == "" {
		return "", fmt.Errorf("run id is required")
	}
	blob, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, species, created_at, metadata) VALUES (?, ?, ?, ?)`,
		meta.ID, meta.Species, meta.Timestamp.UnixNano(), string(blob),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, seq, time, biomass, dead_wood) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare samples: %w", err)
	}
	defer stmt.Close()

	for i, x := range result.States {
		if len(x) != len(Columns) {
			return "", fmt.Errorf("sample %d: expected %d values, got %d", i, len(Columns), len(x))
		}
		if _, err := stmt.ExecContext(ctx, meta.ID, i, result.Times[i], x[0], x[1]); err != nil {
			return "", fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	s.log.WithFields(logrus.Fields{"run": meta.ID, "samples": len(result.States)}).Debug("saved run")
	return meta.ID, nil
}

func (s *SQLiteStore) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT metadata FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(blob), &meta); err != nil {
			return nil, fmt.Errorf("decode run metadata: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(runID string) (*RunMetadata, error) {
	var blob string
	err := s.db.QueryRow(`SELECT metadata FROM runs WHERE id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal([]byte(blob), &meta); err != nil {
		return nil, fmt.Errorf("decode run metadata: %w", err)
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadStates(runID string) ([][]float64, []float64, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT time, biomass, dead_wood FROM samples WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	states := make([][]float64, 0)
	times := make([]float64, 0)
	for rows.Next() {
		var t, b, d float64
		if err := rows.Scan(&t, &b, &d); err != nil {
			return nil, nil, err
		}
		times = append(times, t)
		states = append(states, []float64{b, d})
	}
	return states, times, rows.Err()
}
