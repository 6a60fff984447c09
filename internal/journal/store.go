// Package journal persists session lifecycles to sqlite: one row per
// session and one per state transition.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
)

// ErrNotFound is returned for an unknown session.
var ErrNotFound = errors.New("session not found")

const writeTimeout = 5 * time.Second

// Entry is one journaled transition.
type Entry struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Session is one journaled session.
type Session struct {
	ID          id.SessionID `json:"session_id"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Cause       string       `json:"cause,omitempty"`
	Exited      bool         `json:"exited"`
	ExitCode    int          `json:"exit_code"`
	Signal      int          `json:"signal,omitempty"`
	Error       string       `json:"error,omitempty"`
	Transitions []Entry      `json:"transitions,omitempty"`
}

// Store is the sqlite journal. It implements lifecycle.Recorder.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ lifecycle.Recorder = (*Store)(nil)

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("chmod journal: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}

	logger.Named("journal").Info("journal opened", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("journal")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordTransition appends t, creating the session row on first use.
func (s *Store) RecordTransition(sid id.SessionID, t lifecycle.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions(session_id, started_at) VALUES (?, ?)`,
		sid.String(), ts(t.At)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO transitions(session_id, from_state, to_state, reason, at)
VALUES (?, ?, ?, ?, ?)`,
		sid.String(), t.From.String(), t.To.String(), t.Reason, ts(t.At)); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return tx.Commit()
}

// RecordResult stores the final outcome.
func (s *Store) RecordResult(r lifecycle.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(session_id, started_at, ended_at, cause, exited, exit_code, signal, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	ended_at=excluded.ended_at,
	cause=excluded.cause,
	exited=excluded.exited,
	exit_code=excluded.exit_code,
	signal=excluded.signal,
	error=excluded.error
`, r.SessionID.String(), ts(now), ts(now), string(r.Cause), boolToInt(r.Exited),
		r.ExitCode(), int(r.Status.Signal), r.ErrorText())
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Session loads one session with its transitions.
func (s *Store) Session(ctx context.Context, sid id.SessionID) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT session_id, started_at, ended_at, cause, exited, exit_code, signal, error
FROM sessions WHERE session_id = ?`, sid.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT from_state, to_state, reason, at FROM transitions
WHERE session_id = ? ORDER BY id`, sid.String())
	if err != nil {
		return Session{}, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.From, &e.To, &e.Reason, &at); err != nil {
			return Session{}, fmt.Errorf("scan transition: %w", err)
		}
		if e.At, err = parseTS(at); err != nil {
			return Session{}, fmt.Errorf("parse transition time: %w", err)
		}
		sess.Transitions = append(sess.Transitions, e)
	}
	return sess, rows.Err()
}

// Recent lists the newest sessions first, without transitions.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, started_at, ended_at, cause, exited, exit_code, signal, error
FROM sessions ORDER BY started_at DESC, session_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess      Session
		sid       string
		startedAt string
		endedAt   sql.NullString
		exited    int
	)
	if err := sc.Scan(&sid, &startedAt, &endedAt, &sess.Cause, &exited,
		&sess.ExitCode, &sess.Signal, &sess.Error); err != nil {
		return Session{}, err
	}

	var err error
	sess.ID = id.SessionID(sid)
	sess.Exited = exited != 0
	if sess.StartedAt, err = parseTS(startedAt); err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := parseTS(endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &t
	}
	return sess, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
