// Package history persists question/answer exchanges in a local SQLite
// database so past sessions can be reviewed later.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Session groups the exchanges asked against one dataset.
type Session struct {
	ID        string
	Dataset   string
	CreatedAt time.Time
}

// Exchange is one question/answer pair, plus whatever artifacts the
// pipeline produced for it.
type Exchange struct {
	ID        string
	SessionID string
	Question  string
	Answer    string
	SQLQuery  string
	ChartJSON string
	Error     string
	CreatedAt time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path. Use
// ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts a new session for the named dataset.
func (s *Store) CreateSession(dataset string) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, dataset, created_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Dataset, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// AppendExchange records one completed exchange in a session.
func (s *Store) AppendExchange(ex *Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	ex.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO exchanges (id, session_id, question, answer, sql_query, chart_json, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.SessionID, ex.Question, ex.Answer,
		nullable(ex.SQLQuery), nullable(ex.ChartJSON), nullable(ex.Error), ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}
	return nil
}

// Exchanges returns a session's exchanges in chronological order.
func (s *Store) Exchanges(sessionID string) ([]*Exchange, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, question, answer, sql_query, chart_json, error, created_at
		 FROM exchanges WHERE session_id = ? ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []*Exchange
	for rows.Next() {
		ex := &Exchange{}
		var sqlQuery, chartJSON, errMsg sql.NullString
		err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Question, &ex.Answer,
			&sqlQuery, &chartJSON, &errMsg, &ex.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.SQLQuery = sqlQuery.String
		ex.ChartJSON = chartJSON.String
		ex.Error = errMsg.String
		out = append(out, ex)
	}
	return out, rows.Err()
}

// RecentSessions returns the newest sessions first, at most limit.
func (s *Store) RecentSessions(limit int) ([]*Session, error) {
	rows, err := s.db.Query(
		`SELECT id, dataset, created_at FROM sessions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Dataset, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
