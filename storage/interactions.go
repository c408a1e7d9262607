package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Interaction is one answered mention, kept for debugging and stats.
type Interaction struct {
	At          time.Time
	Account     string
	Category    string
	QuestionLen int
	ReplyLen    int
}

// InteractionLog is a SQLite-backed record of bot interactions.
type InteractionLog struct {
	db *sql.DB
}

const createInteractionsSQL = `
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	account TEXT NOT NULL,
	category TEXT NOT NULL,
	question_len INTEGER NOT NULL,
	reply_len INTEGER NOT NULL
);
`

// OpenInteractionLog opens (creating if needed) the log database at dbPath.
func OpenInteractionLog(dbPath string) (*InteractionLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open interaction log: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set WAL mode: %w", err)
	}

	if _, err := db.Exec(createInteractionsSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create interactions table: %w", err)
	}

	return &InteractionLog{db: db}, nil
}

// Close closes the underlying database.
func (l *InteractionLog) Close() error {
	return l.db.Close()
}

// Record appends one interaction.
func (l *InteractionLog) Record(in Interaction) error {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.Exec(
		`INSERT INTO interactions (at, account, category, question_len, reply_len)
		 VALUES (?, ?, ?, ?, ?)`,
		at.Unix(), in.Account, in.Category, in.QuestionLen, in.ReplyLen,
	)
	if err != nil {
		return fmt.Errorf("storage: record interaction: %w", err)
	}
	return nil
}

// Count returns the total number of recorded interactions.
func (l *InteractionLog) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count interactions: %w", err)
	}
	return n, nil
}

// Recent returns the most recent interactions, newest first.
func (l *InteractionLog) Recent(limit int) ([]Interaction, error) {
	rows, err := l.db.Query(
		`SELECT at, account, category, question_len, reply_len
		 FROM interactions ORDER BY at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var at int64
		if err := rows.Scan(&at, &in.Account, &in.Category, &in.QuestionLen, &in.ReplyLen); err != nil {
			return nil, fmt.Errorf("storage: scan interaction: %w", err)
		}
		in.At = time.Unix(at, 0).UTC()
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate interactions: %w", err)
	}
	return out, nil
}
