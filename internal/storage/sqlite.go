// Package storage persists finished interviews so completion reports
// survive a missed webhook and the history API has something to serve.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synchire/interview-agent/internal/transcript"
)

// Interview is one persisted interview record.
type Interview struct {
	ID              string    `json:"id"`
	CandidateName   string    `json:"candidate_name"`
	JobTitle        string    `json:"job_title"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationMinutes float64   `json:"duration_minutes"`
	QuestionsAsked  int       `json:"questions_asked"`
	Reason          string    `json:"reason"`
	Summary         string    `json:"summary"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interview-agent.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			candidate_name TEXT NOT NULL,
			job_title TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			duration_minutes REAL NOT NULL,
			questions_asked INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create interviews table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interview_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp REAL NOT NULL,
			FOREIGN KEY(interview_id) REFERENCES interviews(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create transcript_entries table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_interviews_completed_at ON interviews(completed_at)"); err != nil {
		return fmt.Errorf("create interviews index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_transcript_interview_id ON transcript_entries(interview_id, id)"); err != nil {
		return fmt.Errorf("create transcript index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveInterview stores one finished interview with its transcript in a
// single transaction.
func (s *SQLiteStore) SaveInterview(iv Interview, entries []transcript.Entry) error {
	if strings.TrimSpace(iv.ID) == "" {
		return errors.New("interview id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save interview %s: %w", iv.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO interviews(id, candidate_name, job_title, started_at, completed_at, duration_minutes, questions_asked, reason, summary)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID,
		iv.CandidateName,
		iv.JobTitle,
		iv.StartedAt.UTC().Format(time.RFC3339Nano),
		iv.CompletedAt.UTC().Format(time.RFC3339Nano),
		iv.DurationMinutes,
		iv.QuestionsAsked,
		iv.Reason,
		iv.Summary,
	); err != nil {
		return fmt.Errorf("insert interview %s: %w", iv.ID, err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(
			`INSERT INTO transcript_entries(interview_id, speaker, text, timestamp) VALUES(?, ?, ?, ?)`,
			iv.ID,
			string(e.Speaker),
			e.Text,
			e.Timestamp,
		); err != nil {
			return fmt.Errorf("insert transcript entry for interview %s: %w", iv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit interview %s: %w", iv.ID, err)
	}
	return nil
}

// GetInterviewsByDate returns interviews completed on the given UTC date
// (YYYY-MM-DD), newest first.
func (s *SQLiteStore) GetInterviewsByDate(date string) ([]Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, candidate_name, job_title, started_at, completed_at, duration_minutes, questions_asked, reason, summary
		 FROM interviews
		 WHERE substr(completed_at, 1, 10) = ?
		 ORDER BY completed_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanInterviews(rows)
}

// GetDates returns the distinct UTC dates with at least one interview,
// newest first.
func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(completed_at, 1, 10) AS date FROM interviews ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetInterview(id string) (Interview, error) {
	row := s.db.QueryRow(
		`SELECT id, candidate_name, job_title, started_at, completed_at, duration_minutes, questions_asked, reason, summary
		 FROM interviews WHERE id = ?`,
		id,
	)

	iv, err := scanInterview(row.Scan)
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

// GetTranscript returns the stored transcript in arrival order.
func (s *SQLiteStore) GetTranscript(interviewID string) ([]transcript.Entry, error) {
	rows, err := s.db.Query(
		`SELECT speaker, text, timestamp FROM transcript_entries WHERE interview_id = ? ORDER BY id ASC`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript for interview %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]transcript.Entry, 0, 32)
	for rows.Next() {
		var e transcript.Entry
		var speaker string
		if err := rows.Scan(&speaker, &e.Text, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcript entry for interview %s: %w", interviewID, err)
		}
		e.Speaker = transcript.Speaker(speaker)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows for interview %s: %w", interviewID, err)
	}

	return entries, nil
}

type scanFunc func(dest ...any) error

func scanInterview(scan scanFunc) (Interview, error) {
	var iv Interview
	var startedAt, completedAt string
	if err := scan(&iv.ID, &iv.CandidateName, &iv.JobTitle, &startedAt, &completedAt, &iv.DurationMinutes, &iv.QuestionsAsked, &iv.Reason, &iv.Summary); err != nil {
		return Interview{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse started_at: %w", err)
	}
	iv.StartedAt = parsedStart

	parsedEnd, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse completed_at: %w", err)
	}
	iv.CompletedAt = parsedEnd

	return iv, nil
}

func scanInterviews(rows *sql.Rows) ([]Interview, error) {
	interviews := make([]Interview, 0, 16)
	for rows.Next() {
		iv, err := scanInterview(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}

	return interviews, nil
}
