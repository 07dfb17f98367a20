package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const createExchangesTable = `
CREATE TABLE IF NOT EXISTS exchanges (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_message TEXT NOT NULL,
	answer TEXT,
	sql_query TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	provider TEXT,
	model TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	latency_ms INTEGER,
	cached BOOLEAN,
	created_at DATETIME
);`

const createExchangesIndex = `CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at);`

const insertExchange = `INSERT INTO exchanges (id, session_id, user_message, answer, sql_query, status, error_message, provider, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, cached, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Exchange is one archived request/response pair
type Exchange struct {
	ID               string
	SessionID        string
	UserMessage      string
	Answer           string
	SQLQuery         string
	Status           string
	ErrorMessage     string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMS        int64
	Cached           bool
	CreatedAt        time.Time
}

// Archive appends exchanges to a SQLite database. Nothing reads them
// back into a live session.
type Archive struct {
	db *sql.DB
}

// InitDB opens the SQLite archive at path and creates its schema
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the archive tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createExchangesTable); err != nil {
		return fmt.Errorf("failed to create exchanges table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createExchangesIndex); err != nil {
		return fmt.Errorf("failed to create exchanges index: %w", err)
	}
	return nil
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// Record inserts one exchange, filling in the id and timestamp when unset
func (a *Archive) Record(ctx context.Context, e Exchange) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx, insertExchange,
		e.ID, e.SessionID, e.UserMessage, e.Answer, e.SQLQuery, e.Status, e.ErrorMessage,
		e.Provider, e.Model, e.PromptTokens, e.CompletionTokens, e.TotalTokens,
		e.LatencyMS, e.Cached, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive exchange: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
