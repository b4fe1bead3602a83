package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mailhook/internal/models"
)

// ScheduledSendService handles scheduled send storage
type ScheduledSendService struct {
	db *sqlx.DB
}

// NewScheduledSendService creates a new scheduled send service
func NewScheduledSendService(db *sqlx.DB) (*ScheduledSendService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required for scheduled send service")
	}

	service := &ScheduledSendService{db: db}

	// Create tables if they don't exist
	if err := service.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create scheduled send tables: %w", err)
	}

	return service, nil
}

// CreateTables creates the scheduled send tables in the database. DDL is
// per-driver: MySQL takes its indexes inline and has no TEXT defaults.
func (s *ScheduledSendService) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_sends (
			id VARCHAR(36) PRIMARY KEY,
			idempotency_key VARCHAR(255) UNIQUE,
			from_addr TEXT NOT NULL,
			to_addrs TEXT NOT NULL,
			cc_addrs TEXT,
			bcc_addrs TEXT,
			subject TEXT NOT NULL DEFAULT '',
			text_body TEXT,
			html_body TEXT,
			attachments TEXT,
			scheduled_at TIMESTAMP NOT NULL,
			timezone VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			sent_at TIMESTAMP,
			cancelled_at TIMESTAMP,
			failed_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_sends_due ON scheduled_sends(status, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_sends_created_at ON scheduled_sends(created_at DESC)`,
	}
	if s.db.DriverName() == driverMySQL {
		queries = []string{
			`CREATE TABLE IF NOT EXISTS scheduled_sends (
				id VARCHAR(36) PRIMARY KEY,
				idempotency_key VARCHAR(255) UNIQUE,
				from_addr TEXT NOT NULL,
				to_addrs TEXT NOT NULL,
				cc_addrs TEXT,
				bcc_addrs TEXT,
				subject TEXT NOT NULL,
				text_body TEXT,
				html_body TEXT,
				attachments TEXT,
				scheduled_at DATETIME NOT NULL,
				timezone VARCHAR(64) NOT NULL DEFAULT '',
				status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				sent_at DATETIME,
				cancelled_at DATETIME,
				failed_reason TEXT,
				INDEX idx_scheduled_sends_due (status, scheduled_at),
				INDEX idx_scheduled_sends_created_at (created_at DESC)
			)`,
		}
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create scheduled_sends schema: %w", err)
		}
	}

	return nil
}

// scheduledSendRow is the flat database shape of a scheduled send. Address
// lists and attachments are stored as JSON text so the schema stays portable
// across drivers.
type scheduledSendRow struct {
	ID             string         `db:"id"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	FromAddr       string         `db:"from_addr"`
	ToAddrs        string         `db:"to_addrs"`
	CcAddrs        sql.NullString `db:"cc_addrs"`
	BccAddrs       sql.NullString `db:"bcc_addrs"`
	Subject        string         `db:"subject"`
	TextBody       sql.NullString `db:"text_body"`
	HTMLBody       sql.NullString `db:"html_body"`
	Attachments    sql.NullString `db:"attachments"`
	ScheduledAt    time.Time      `db:"scheduled_at"`
	Timezone       string         `db:"timezone"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	SentAt         sql.NullTime   `db:"sent_at"`
	CancelledAt    sql.NullTime   `db:"cancelled_at"`
	FailedReason   sql.NullString `db:"failed_reason"`
}

// storedAttachment mirrors models.Attachment with content included, since
// the model excludes content from its JSON form.
type storedAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentID   string `json:"content_id,omitempty"`
	Disposition string `json:"disposition"`
	Content     []byte `json:"content,omitempty"`
}

const scheduledSendColumns = `id, idempotency_key, from_addr, to_addrs, cc_addrs, bcc_addrs,
	subject, text_body, html_body, attachments, scheduled_at, timezone, status,
	created_at, sent_at, cancelled_at, failed_reason`

// Create inserts a new scheduled send. It reports false without error when
// the row's idempotency key is already taken, so callers can fetch the
// winner's row instead.
func (s *ScheduledSendService) Create(ctx context.Context, send *models.ScheduledSend) (bool, error) {
	toJSON, err := json.Marshal(send.ToAddrs)
	if err != nil {
		return false, fmt.Errorf("failed to encode recipients: %w", err)
	}
	ccJSON, err := json.Marshal(send.CcAddrs)
	if err != nil {
		return false, fmt.Errorf("failed to encode cc recipients: %w", err)
	}
	bccJSON, err := json.Marshal(send.BccAddrs)
	if err != nil {
		return false, fmt.Errorf("failed to encode bcc recipients: %w", err)
	}
	attJSON, err := encodeAttachments(send.Attachments)
	if err != nil {
		return false, err
	}

	// ON CONFLICT is Postgres; MySQL spells the same no-op insert INSERT IGNORE.
	query := `
		INSERT INTO scheduled_sends (
			id, idempotency_key, from_addr, to_addrs, cc_addrs, bcc_addrs,
			subject, text_body, html_body, attachments, scheduled_at, timezone,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	if s.db.DriverName() == driverMySQL {
		query = `
			INSERT IGNORE INTO scheduled_sends (
				id, idempotency_key, from_addr, to_addrs, cc_addrs, bcc_addrs,
				subject, text_body, html_body, attachments, scheduled_at, timezone,
				status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		send.ID, send.IdempotencyKey, send.FromAddr,
		string(toJSON), string(ccJSON), string(bccJSON),
		send.Subject, send.TextBody, send.HTMLBody, attJSON,
		send.ScheduledAt.UTC(), send.Timezone, string(send.Status), send.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert scheduled send: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected == 1, nil
}

// GetByID returns a scheduled send by id, or (nil, nil) when none exists
func (s *ScheduledSendService) GetByID(ctx context.Context, id string) (*models.ScheduledSend, error) {
	query := s.db.Rebind(`SELECT ` + scheduledSendColumns + ` FROM scheduled_sends WHERE id = ?`)

	var row scheduledSendRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query scheduled send: %w", err)
	}
	return rowToModel(&row)
}

// ListByStatus returns scheduled sends in the given status ordered by
// scheduled time, paginated
func (s *ScheduledSendService) ListByStatus(ctx context.Context, status models.ScheduledSendStatus, limit, offset int) ([]*models.ScheduledSend, error) {
	query := s.db.Rebind(`
		SELECT ` + scheduledSendColumns + `
		FROM scheduled_sends
		WHERE status = ?
		ORDER BY scheduled_at ASC
		LIMIT ? OFFSET ?
	`)
	var rows []scheduledSendRow
	if err := s.db.SelectContext(ctx, &rows, query, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list scheduled sends: %w", err)
	}
	return rowsToModels(rows)
}

// ListDue returns pending sends whose scheduled time is at or before now
func (s *ScheduledSendService) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledSend, error) {
	query := s.db.Rebind(`
		SELECT ` + scheduledSendColumns + `
		FROM scheduled_sends
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`)
	var rows []scheduledSendRow
	if err := s.db.SelectContext(ctx, &rows, query, string(models.StatusScheduled), now.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list due sends: %w", err)
	}
	return rowsToModels(rows)
}

// UpdateStatus transitions a send from one status to another. It reports
// false when the row was not in the expected starting status, which makes it
// usable as an atomic claim.
func (s *ScheduledSendService) UpdateStatus(ctx context.Context, id string, from, to models.ScheduledSendStatus) (bool, error) {
	query := s.db.Rebind(`UPDATE scheduled_sends SET status = ? WHERE id = ? AND status = ?`)
	result, err := s.db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update scheduled send status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return affected == 1, nil
}

// MarkSent records a successful send
func (s *ScheduledSendService) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := s.db.Rebind(`UPDATE scheduled_sends SET status = ?, sent_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, string(models.StatusSent), sentAt.UTC(), id); err != nil {
		return fmt.Errorf("failed to mark scheduled send sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed send with the failure reason
func (s *ScheduledSendService) MarkFailed(ctx context.Context, id string, reason string) error {
	query := s.db.Rebind(`UPDATE scheduled_sends SET status = ?, failed_reason = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, string(models.StatusFailed), reason, id); err != nil {
		return fmt.Errorf("failed to mark scheduled send failed: %w", err)
	}
	return nil
}

// MarkCancelled cancels a pending send. It reports false when the send was
// no longer in the scheduled state.
func (s *ScheduledSendService) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	query := s.db.Rebind(`
		UPDATE scheduled_sends SET status = ?, cancelled_at = ?
		WHERE id = ? AND status = ?
	`)
	result, err := s.db.ExecContext(ctx, query, string(models.StatusCancelled), cancelledAt.UTC(), id, string(models.StatusScheduled))
	if err != nil {
		return false, fmt.Errorf("failed to cancel scheduled send: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read cancel result: %w", err)
	}
	return affected == 1, nil
}

// FindByIdempotencyKey returns the send created with the given key, or
// (nil, nil) when the key is unused
func (s *ScheduledSendService) FindByIdempotencyKey(ctx context.Context, key string) (*models.ScheduledSend, error) {
	query := s.db.Rebind(`SELECT ` + scheduledSendColumns + ` FROM scheduled_sends WHERE idempotency_key = ?`)

	var row scheduledSendRow
	if err := s.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query by idempotency key: %w", err)
	}
	return rowToModel(&row)
}

func encodeAttachments(attachments []models.Attachment) (*string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	stored := make([]storedAttachment, 0, len(attachments))
	for _, att := range attachments {
		stored = append(stored, storedAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			SizeBytes:   att.SizeBytes,
			ContentID:   att.ContentID,
			Disposition: att.Disposition,
			Content:     att.Content,
		})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	encoded := string(data)
	return &encoded, nil
}

func rowToModel(row *scheduledSendRow) (*models.ScheduledSend, error) {
	send := &models.ScheduledSend{
		ID:          row.ID,
		FromAddr:    row.FromAddr,
		Subject:     row.Subject,
		ScheduledAt: row.ScheduledAt.UTC(),
		Timezone:    row.Timezone,
		Status:      models.ScheduledSendStatus(row.Status),
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.IdempotencyKey.Valid {
		send.IdempotencyKey = &row.IdempotencyKey.String
	}
	if row.TextBody.Valid {
		send.TextBody = &row.TextBody.String
	}
	if row.HTMLBody.Valid {
		send.HTMLBody = &row.HTMLBody.String
	}
	if row.FailedReason.Valid {
		send.FailedReason = &row.FailedReason.String
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time.UTC()
		send.SentAt = &t
	}
	if row.CancelledAt.Valid {
		t := row.CancelledAt.Time.UTC()
		send.CancelledAt = &t
	}

	if err := json.Unmarshal([]byte(row.ToAddrs), &send.ToAddrs); err != nil {
		return nil, fmt.Errorf("failed to decode recipients for %s: %w", row.ID, err)
	}
	if row.CcAddrs.Valid && row.CcAddrs.String != "" {
		if err := json.Unmarshal([]byte(row.CcAddrs.String), &send.CcAddrs); err != nil {
			return nil, fmt.Errorf("failed to decode cc recipients for %s: %w", row.ID, err)
		}
	}
	if row.BccAddrs.Valid && row.BccAddrs.String != "" {
		if err := json.Unmarshal([]byte(row.BccAddrs.String), &send.BccAddrs); err != nil {
			return nil, fmt.Errorf("failed to decode bcc recipients for %s: %w", row.ID, err)
		}
	}
	if row.Attachments.Valid && row.Attachments.String != "" {
		var stored []storedAttachment
		if err := json.Unmarshal([]byte(row.Attachments.String), &stored); err != nil {
			return nil, fmt.Errorf("failed to decode attachments for %s: %w", row.ID, err)
		}
		for _, att := range stored {
			send.Attachments = append(send.Attachments, models.Attachment{
				Filename:    att.Filename,
				ContentType: att.ContentType,
				SizeBytes:   att.SizeBytes,
				ContentID:   att.ContentID,
				Disposition: att.Disposition,
				Content:     att.Content,
			})
		}
	}

	return send, nil
}

func rowsToModels(rows []scheduledSendRow) ([]*models.ScheduledSend, error) {
	sends := make([]*models.ScheduledSend, 0, len(rows))
	for i := range rows {
		send, err := rowToModel(&rows[i])
		if err != nil {
			return nil, err
		}
		sends = append(sends, send)
	}
	return sends, nil
}
