package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/cometlabs/comet/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SQLiteStore persists tasks in a single SQLite file. The result payload is
// stored as a JSON column; the queryable fields get their own columns.
type SQLiteStore struct {
	db *sql.DB
}

var _ schemas.TaskStore = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at dbPath in WAL mode.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS browse_tasks (
		task_id TEXT PRIMARY KEY,
		goal TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		result_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_browse_tasks_status ON browse_tasks(status);
	CREATE INDEX IF NOT EXISTS idx_browse_tasks_created ON browse_tasks(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, task *schemas.BrowseTask) error {
	resultJSON, completedAt, err := encodeTask(task)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO browse_tasks (task_id, goal, status, error, result_json, created_at, updated_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.Goal, string(task.Status), task.Error, resultJSON,
		task.CreatedAt.UnixNano(), task.UpdatedAt.UnixNano(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*schemas.BrowseTask, error) {
	query := `
	SELECT task_id, goal, status, error, result_json, created_at, updated_at, completed_at
	FROM browse_tasks WHERE task_id = ?`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schemas.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLiteStore) Update(ctx context.Context, task *schemas.BrowseTask) error {
	resultJSON, completedAt, err := encodeTask(task)
	if err != nil {
		return err
	}

	query := `
	UPDATE browse_tasks
	SET goal = ?, status = ?, error = ?, result_json = ?, updated_at = ?, completed_at = ?
	WHERE task_id = ?`

	res, err := s.db.ExecContext(ctx, query,
		task.Goal, string(task.Status), task.Error, resultJSON,
		task.UpdatedAt.UnixNano(), completedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schemas.ErrTaskNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, filter schemas.TaskFilter) ([]*schemas.BrowseTask, error) {
	query := `
	SELECT task_id, goal, status, error, result_json, created_at, updated_at, completed_at
	FROM browse_tasks`
	args := []any{}

	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*schemas.BrowseTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM browse_tasks WHERE task_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schemas.ErrTaskNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeTask(task *schemas.BrowseTask) (resultJSON sql.NullString, completedAt sql.NullInt64, err error) {
	if task.Result != nil {
		b, merr := json.Marshal(task.Result)
		if merr != nil {
			return resultJSON, completedAt, fmt.Errorf("marshal task result: %w", merr)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}
	if task.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: task.CompletedAt.UnixNano(), Valid: true}
	}
	return resultJSON, completedAt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*schemas.BrowseTask, error) {
	var task schemas.BrowseTask
	var status string
	var resultJSON sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&task.ID, &task.Goal, &status, &task.Error, &resultJSON, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	task.Status = schemas.TaskStatus(status)
	task.CreatedAt = time.Unix(0, createdAt)
	task.UpdatedAt = time.Unix(0, updatedAt)
	if completedAt.Valid {
		at := time.Unix(0, completedAt.Int64)
		task.CompletedAt = &at
	}
	if resultJSON.Valid {
		var result schemas.BrowseResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal task result: %w", err)
		}
		task.Result = &result
	}
	return &task, nil
}
