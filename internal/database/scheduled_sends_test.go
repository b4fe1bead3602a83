package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailhook/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	return newMockDBDriver(t, "postgres")
}

func newMockDBDriver(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return sqlx.NewDb(db, driver), mock
}

func scheduledSendFixture() *models.ScheduledSend {
	body := "hello"
	key := "key-1"
	return &models.ScheduledSend{
		ID:             "abc-123",
		IdempotencyKey: &key,
		FromAddr:       "sender@example.com",
		ToAddrs:        []string{"rcpt@example.com"},
		Subject:        "Hi",
		TextBody:       &body,
		ScheduledAt:    time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Status:         models.StatusScheduled,
		CreatedAt:      time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC),
	}
}

func scheduledSendRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "idempotency_key", "from_addr", "to_addrs", "cc_addrs", "bcc_addrs",
		"subject", "text_body", "html_body", "attachments", "scheduled_at", "timezone",
		"status", "created_at", "sent_at", "cancelled_at", "failed_reason",
	})
}

func TestScheduledSendCreate(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantInserted bool
	}{
		{name: "inserted", rowsAffected: 1, wantInserted: true},
		{name: "idempotency key conflict", rowsAffected: 0, wantInserted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			service := &ScheduledSendService{db: db}

			mock.ExpectExec("INSERT INTO scheduled_sends").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			inserted, err := service.Create(context.Background(), scheduledSendFixture())
			require.NoError(t, err)
			assert.Equal(t, tt.wantInserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestScheduledSendCreate_MySQLUsesInsertIgnore(t *testing.T) {
	db, mock := newMockDBDriver(t, "mysql")
	service := &ScheduledSendService{db: db}

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO scheduled_sends")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := service.Create(context.Background(), scheduledSendFixture())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Each driver must see its own bindvar style: ? for mysql, $N for postgres.
func TestScheduledSendQueriesUseDriverBindvars(t *testing.T) {
	t.Run("mysql", func(t *testing.T) {
		db, mock := newMockDBDriver(t, "mysql")
		service := &ScheduledSendService{db: db}

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ?")).
			WithArgs("abc-123").
			WillReturnError(sql.ErrNoRows)

		send, err := service.GetByID(context.Background(), "abc-123")
		require.NoError(t, err)
		assert.Nil(t, send)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
			WithArgs("abc-123").
			WillReturnError(sql.ErrNoRows)

		send, err := service.GetByID(context.Background(), "abc-123")
		require.NoError(t, err)
		assert.Nil(t, send)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScheduledSendCreateTables(t *testing.T) {
	t.Run("reports exec errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS scheduled_sends").
			WillReturnError(errors.New("permission denied"))

		err := service.CreateTables()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("mysql indexes are inline", func(t *testing.T) {
		db, mock := newMockDBDriver(t, "mysql")
		service := &ScheduledSendService{db: db}

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS scheduled_sends(.|\\s)+INDEX idx_scheduled_sends_due").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, service.CreateTables())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScheduledSendGetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		scheduledAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM scheduled_sends WHERE id").
			WithArgs("abc-123").
			WillReturnRows(scheduledSendRows().AddRow(
				"abc-123", "key-1", "sender@example.com", `["rcpt@example.com"]`, nil, nil,
				"Hi", "hello", nil, nil, scheduledAt, "",
				"scheduled", scheduledAt.Add(-time.Hour), nil, nil, nil,
			))

		send, err := service.GetByID(context.Background(), "abc-123")
		require.NoError(t, err)
		require.NotNil(t, send)
		assert.Equal(t, "abc-123", send.ID)
		assert.Equal(t, []string{"rcpt@example.com"}, send.ToAddrs)
		assert.Equal(t, models.StatusScheduled, send.Status)
		require.NotNil(t, send.IdempotencyKey)
		assert.Equal(t, "key-1", *send.IdempotencyKey)
		require.NotNil(t, send.TextBody)
		assert.Equal(t, "hello", *send.TextBody)
		assert.Nil(t, send.HTMLBody)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		mock.ExpectQuery("SELECT (.+) FROM scheduled_sends WHERE id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		send, err := service.GetByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, send)
	})
}

func TestScheduledSendUpdateStatus(t *testing.T) {
	t.Run("claim succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		mock.ExpectExec("UPDATE scheduled_sends SET status").
			WithArgs("processing", "abc-123", "scheduled").
			WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, err := service.UpdateStatus(context.Background(), "abc-123", models.StatusScheduled, models.StatusProcessing)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("claim loses race", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := &ScheduledSendService{db: db}

		mock.ExpectExec("UPDATE scheduled_sends SET status").
			WithArgs("processing", "abc-123", "scheduled").
			WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := service.UpdateStatus(context.Background(), "abc-123", models.StatusScheduled, models.StatusProcessing)
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestScheduledSendListDue(t *testing.T) {
	db, mock := newMockDB(t)
	service := &ScheduledSendService{db: db}

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM scheduled_sends").
		WithArgs("scheduled", now, 100).
		WillReturnRows(scheduledSendRows().AddRow(
			"due-1", nil, "sender@example.com", `["a@example.com","b@example.com"]`, nil, nil,
			"Reminder", "see you", nil, nil, now.Add(-time.Minute), "",
			"scheduled", now.Add(-time.Hour), nil, nil, nil,
		))

	due, err := service.ListDue(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due-1", due[0].ID)
	assert.Nil(t, due[0].IdempotencyKey)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, due[0].ToAddrs)
}

func TestScheduledSendMarkCancelled(t *testing.T) {
	db, mock := newMockDB(t)
	service := &ScheduledSendService{db: db}

	cancelledAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE scheduled_sends SET status").
		WithArgs("cancelled", cancelledAt, "abc-123", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cancelled, err := service.MarkCancelled(context.Background(), "abc-123", cancelledAt)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledSendFindByIdempotencyKey(t *testing.T) {
	db, mock := newMockDB(t)
	service := &ScheduledSendService{db: db}

	mock.ExpectQuery("SELECT (.+) FROM scheduled_sends WHERE idempotency_key").
		WithArgs("unused").
		WillReturnError(sql.ErrNoRows)

	send, err := service.FindByIdempotencyKey(context.Background(), "unused")
	require.NoError(t, err)
	assert.Nil(t, send)
}
