package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketpulse/internal/chat"
	"marketpulse/internal/task"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Session is one conversation with the backend agent.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one chat exchange entry within a session.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	Sources   []chat.Source
	CreatedAt time.Time
}

// Run is a persisted snapshot of a finished agent task.
type Run struct {
	ID         int64
	SessionID  string
	TaskID     string
	Title      string
	Status     string
	Progress   int
	Output     string
	Steps      []task.Step
	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// nullableTime maps the zero time to NULL for storage.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Store wraps the database with session-scoped persistence operations.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, id, title string) (*Session, error) {
	now := time.Now().UTC()
	err := RetryWithBackoff(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			id, title, now, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// TouchSession bumps a session's updated_at so it sorts to the top.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	return RetryWithBackoff(func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
		return err
	})
}

// RenameSession updates a session's title.
func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	var affected int64
	err := RetryWithBackoff(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
			title, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its messages and runs.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	err := RetryWithBackoff(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// AppendMessage records one chat exchange entry.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string, sources []chat.Source) (*Message, error) {
	if sources == nil {
		sources = []chat.Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("encode sources: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = RetryWithBackoff(func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
			sessionID, role, content, string(raw), now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &Message{ID: id, SessionID: sessionID, Role: role, Content: content, Sources: sources, CreatedAt: now}, nil
}

// Messages returns a session's messages in insertion order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, sources, created_at FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var raw string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for message %d: %w", m.ID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveRun persists a task snapshot as a run journal entry.
func (s *Store) SaveRun(ctx context.Context, sessionID string, t *task.Task) (*Run, error) {
	if t == nil {
		return nil, errors.New("save run: nil task")
	}
	steps := t.Steps
	if steps == nil {
		steps = []task.Step{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = RetryWithBackoff(func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (session_id, task_id, title, status, progress, output, steps, started_at, finished_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, t.ID, t.Title, string(t.Status), t.TotalProgress, t.Output,
			string(raw), nullableTime(t.StartedAt), nullableTime(t.FinishedAt), now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return &Run{
		ID: id, SessionID: sessionID, TaskID: t.ID, Title: t.Title,
		Status: string(t.Status), Progress: t.TotalProgress, Output: t.Output,
		Steps: steps, StartedAt: t.StartedAt, FinishedAt: t.FinishedAt, CreatedAt: now,
	}, nil
}

// Runs returns a session's run journal, newest first.
func (s *Store) Runs(ctx context.Context, sessionID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, task_id, title, status, progress, output, steps, started_at, finished_at, created_at
		 FROM runs WHERE session_id = ? ORDER BY id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var raw string
		var started, finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.SessionID, &r.TaskID, &r.Title, &r.Status, &r.Progress,
			&r.Output, &raw, &started, &finished, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, r.FinishedAt = started.Time, finished.Time
		if err := json.Unmarshal([]byte(raw), &r.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
