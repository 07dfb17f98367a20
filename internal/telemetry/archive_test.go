package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestMigrate(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta(createExchangesTable)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(createExchangesIndex)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateError(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta(createExchangesTable)).WillReturnError(errors.New("disk I/O error"))

	err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create exchanges table")
}

func TestArchiveRecord(t *testing.T) {
	db, mock := newSQLMock(t)
	archive := NewArchive(db)
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(insertExchange)).
		WithArgs("ex-1", "s1", "How many assets?", "There are 42 assets.", "SELECT COUNT(*) FROM Assets",
			"ok", "", "ollama", "llama3.2", 900, 30, 930, int64(1200), false, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := archive.Record(context.Background(), Exchange{
		ID:               "ex-1",
		SessionID:        "s1",
		UserMessage:      "How many assets?",
		Answer:           "There are 42 assets.",
		SQLQuery:         "SELECT COUNT(*) FROM Assets",
		Status:           "ok",
		Provider:         "ollama",
		Model:            "llama3.2",
		PromptTokens:     900,
		CompletionTokens: 30,
		TotalTokens:      930,
		LatencyMS:        1200,
		CreatedAt:        at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRecordFillsDefaults(t *testing.T) {
	db, mock := newSQLMock(t)
	archive := NewArchive(db)

	mock.ExpectExec(regexp.QuoteMeta(insertExchange)).
		WithArgs(sqlmock.AnyArg(), "s1", "q", "", "", "error", "connection refused",
			"openai", "gpt-4o-mini", 0, 0, 0, int64(5), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := archive.Record(context.Background(), Exchange{
		SessionID:    "s1",
		UserMessage:  "q",
		Status:       "error",
		ErrorMessage: "connection refused",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		LatencyMS:    5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRecordError(t *testing.T) {
	db, mock := newSQLMock(t)
	archive := NewArchive(db)

	mock.ExpectExec(regexp.QuoteMeta(insertExchange)).WillReturnError(errors.New("database is locked"))

	err := archive.Record(context.Background(), Exchange{SessionID: "s1", Status: "ok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive exchange")
}
