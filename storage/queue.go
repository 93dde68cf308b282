package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"serpwatch/models"
)

// ErrNotInPool signals that a job was absent from the pool a transition
// expected it in. That means a prior crash mid-transition: surface it
// loudly, never swallow it.
var ErrNotInPool = errors.New("job not in expected pool")

// QueueStore holds the three durable job pools (submitted, in_progress,
// completed) in a single transactional SQLite table. Every mutation of the
// submitted pool writes an immutable backup snapshot first, and all pool
// mutations are serialized through one writer.
type QueueStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewQueueStore(dbPath string) (*QueueStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &QueueStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *QueueStore) Close() error {
	return s.db.Close()
}

func (s *QueueStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queue_jobs (
		job_id TEXT PRIMARY KEY,
		pool TEXT NOT NULL,
		job JSON NOT NULL,
		enqueued_at DATETIME NOT NULL,
		moved_to_progress_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS queue_backups (
		id INTEGER PRIMARY KEY,
		taken_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		reason TEXT,
		snapshot JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_queue_pool ON queue_jobs(pool, enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Enqueue adds a job to the submitted pool
func (s *QueueStore) Enqueue(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.backupSubmitted(tx, "enqueue"); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO queue_jobs (job_id, pool, job, enqueued_at)
		VALUES (?, ?, ?, ?)`,
		job.ID.String(), models.PoolSubmitted, payload, time.Now())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MoveToInProgress transitions a job from submitted to in_progress as a
// single transaction. Fails with ErrNotInPool if the job is not in the
// submitted pool.
func (s *QueueStore) MoveToInProgress(jobID uuid.UUID) error {
	return s.move(jobID, models.PoolSubmitted, models.PoolInProgress)
}

// MoveToCompleted transitions a job from in_progress to completed.
func (s *QueueStore) MoveToCompleted(jobID uuid.UUID) error {
	return s.move(jobID, models.PoolInProgress, models.PoolCompleted)
}

func (s *QueueStore) move(jobID uuid.UUID, from, to models.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if from == models.PoolSubmitted {
		if err := s.backupSubmitted(tx, fmt.Sprintf("move %s to %s", jobID, to)); err != nil {
			return err
		}
	}

	var column string
	switch to {
	case models.PoolInProgress:
		column = "moved_to_progress_at"
	case models.PoolCompleted:
		column = "completed_at"
	default:
		return fmt.Errorf("invalid destination pool: %s", to)
	}

	result, err := tx.Exec(fmt.Sprintf(`
		UPDATE queue_jobs SET pool = ?, %s = ?
		WHERE job_id = ? AND pool = ?`, column),
		to, time.Now(), jobID.String(), from)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("job %s, pool %s: %w", jobID, from, ErrNotInPool)
	}

	return tx.Commit()
}

// backupSubmitted snapshots the submitted pool into queue_backups inside
// the caller's transaction, before the mutation commits.
func (s *QueueStore) backupSubmitted(tx *sql.Tx, reason string) error {
	records, err := listByPoolTx(tx, models.PoolSubmitted)
	if err != nil {
		return fmt.Errorf("snapshot submitted pool: %w", err)
	}

	snapshot, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO queue_backups (reason, snapshot) VALUES (?, ?)`, reason, snapshot)
	return err
}

// PeekSubmitted returns the head of the submitted pool without removing
// it, or nil when the pool is empty.
func (s *QueueStore) PeekSubmitted() (*models.QueueRecord, error) {
	row := s.db.QueryRow(`
		SELECT job_id, pool, job, enqueued_at, moved_to_progress_at, completed_at
		FROM queue_jobs WHERE pool = ? ORDER BY enqueued_at LIMIT 1`, models.PoolSubmitted)

	record, err := scanQueueRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListByPool returns all records in a pool in enqueue order
func (s *QueueStore) ListByPool(pool models.Pool) ([]models.QueueRecord, error) {
	rows, err := s.db.Query(`
		SELECT job_id, pool, job, enqueued_at, moved_to_progress_at, completed_at
		FROM queue_jobs WHERE pool = ? ORDER BY enqueued_at`, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.QueueRecord
	for rows.Next() {
		record, err := scanQueueRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueRecord(row rowScanner) (*models.QueueRecord, error) {
	var record models.QueueRecord
	var jobID string
	var payload []byte
	var movedAt, completedAt sql.NullTime

	if err := row.Scan(&jobID, &record.Pool, &payload, &record.EnqueuedAt, &movedAt, &completedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &record.Job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	if movedAt.Valid {
		record.MovedToProgressAt = &movedAt.Time
	}
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	return &record, nil
}

func listByPoolTx(tx *sql.Tx, pool models.Pool) ([]models.QueueRecord, error) {
	rows, err := tx.Query(`
		SELECT job_id, pool, job, enqueued_at, moved_to_progress_at, completed_at
		FROM queue_jobs WHERE pool = ? ORDER BY enqueued_at`, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.QueueRecord{}
	for rows.Next() {
		record, err := scanQueueRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// DrainActive moves every submitted and in_progress record to the
// completed pool in one transaction and returns the records that moved.
// Used by batch cancellation.
func (s *QueueStore) DrainActive() ([]models.QueueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.backupSubmitted(tx, "cancel batch"); err != nil {
		return nil, err
	}

	submitted, err := listByPoolTx(tx, models.PoolSubmitted)
	if err != nil {
		return nil, err
	}
	inProgress, err := listByPoolTx(tx, models.PoolInProgress)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE queue_jobs SET pool = ?, completed_at = ?
		WHERE pool IN (?, ?)`,
		models.PoolCompleted, now, models.PoolSubmitted, models.PoolInProgress)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return append(submitted, inProgress...), nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *QueueStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *QueueStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *QueueStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
