package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/andriantochan/signbench/pkg/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the Postgres store.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// PostgresStore persists checkpoints and timing records in Postgres. It
// satisfies checkpoint.Store: one row per checkpoint key, overwritten on
// every save, so operators running the bench from several hosts share
// resume state through the database instead of a local file.
type PostgresStore struct {
	db     *sqlx.DB
	key    string
	logger Logger
}

// NewPostgresStore connects and scopes all checkpoint operations to key
// (one key per bench scenario).
func NewPostgresStore(connStr, key string, logger Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PostgresStore{db: db, key: key, logger: logger}, nil
}

type checkpointRow struct {
	Key            string    `db:"key"`
	RunID          string    `db:"run_id"`
	State          []byte    `db:"state"`
	CompletedSteps []byte    `db:"completed_steps"`
	SavedAt        time.Time `db:"saved_at"`
}

func (s *PostgresStore) Save(cp *models.Checkpoint) error {
	if cp == nil {
		return errors.New("nil checkpoint")
	}
	cp.SavedAt = time.Now()

	state, err := json.Marshal(cp.State)
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	steps, err := json.Marshal(cp.CompletedSteps)
	if err != nil {
		return errors.Wrap(err, "marshal completed steps")
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints (key, run_id, state, completed_steps, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET run_id = $2, state = $3, completed_steps = $4, saved_at = $5`,
		s.key, cp.RunID, state, steps, cp.SavedAt)
	return errors.Wrap(err, "save checkpoint")
}

func (s *PostgresStore) Load() (*models.Checkpoint, error) {
	var row checkpointRow
	err := s.db.Get(&row, "SELECT key, run_id, state, completed_steps, saved_at FROM checkpoints WHERE key = $1", s.key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load checkpoint")
	}

	cp := &models.Checkpoint{RunID: row.RunID, SavedAt: row.SavedAt}
	if err := json.Unmarshal(row.State, &cp.State); err != nil {
		s.logger.Warnf("Checkpoint %q has corrupt state, starting fresh: %v", s.key, err)
		return nil, nil
	}
	if err := json.Unmarshal(row.CompletedSteps, &cp.CompletedSteps); err != nil {
		s.logger.Warnf("Checkpoint %q has corrupt step list, starting fresh: %v", s.key, err)
		return nil, nil
	}
	s.logger.Infof("Loaded checkpoint %q (last step: %s, saved at %s)",
		s.key, cp.LastStep(), cp.SavedAt.Format(time.RFC3339))
	return cp, nil
}

func (s *PostgresStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM checkpoints WHERE key = $1", s.key)
	return errors.Wrap(err, "clear checkpoint")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveTimings appends the run's timing records for later cross-run
// comparison queries.
func (s *PostgresStore) SaveTimings(runID string, records []models.TimingRecord) error {
	for _, r := range records {
		_, err := s.db.Exec(`
			INSERT INTO timings (run_id, operation, start_time, end_time, duration_ms, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, r.Operation, r.StartTime, r.EndTime, r.Duration.Milliseconds(), string(r.Status))
		if err != nil {
			return errors.Wrapf(err, "save timing for %s", r.Operation)
		}
	}
	return nil
}

// ListTimings returns all timing rows of one run in insertion order.
func (s *PostgresStore) ListTimings(runID string) ([]models.TimingRecord, error) {
	rows, err := s.db.Queryx(`
		SELECT operation, start_time, end_time, duration_ms, status
		FROM timings WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list timings")
	}
	defer rows.Close()

	var out []models.TimingRecord
	for rows.Next() {
		var (
			rec        models.TimingRecord
			durationMS int64
			status     string
		)
		if err := rows.Scan(&rec.Operation, &rec.StartTime, &rec.EndTime, &durationMS, &status); err != nil {
			return nil, errors.Wrap(err, "scan timing")
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Status = models.TimingStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
