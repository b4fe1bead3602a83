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

// EndpointService handles delivery endpoint storage. Endpoints are managed
// out of band; this service only reads them.
type EndpointService struct {
	db *sqlx.DB
}

// NewEndpointService creates a new endpoint service
func NewEndpointService(db *sqlx.DB) (*EndpointService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required for endpoint service")
	}

	service := &EndpointService{db: db}

	// Create tables if they don't exist
	if err := service.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create endpoint tables: %w", err)
	}

	return service, nil
}

// CreateTables creates the endpoint tables in the database. DDL is
// per-driver: MySQL takes its indexes inline.
func (s *EndpointService) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS endpoints (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			type VARCHAR(32) NOT NULL,
			url TEXT,
			format VARCHAR(16),
			timeout_seconds INTEGER NOT NULL DEFAULT 0,
			retry_attempts INTEGER NOT NULL DEFAULT 0,
			custom_headers TEXT,
			signing_secret TEXT,
			forward_to TEXT,
			recipients TEXT,
			include_attachments BOOLEAN NOT NULL DEFAULT FALSE,
			subject_prefix VARCHAR(255) NOT NULL DEFAULT '',
			sender_name VARCHAR(255) NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_active ON endpoints(active)`,
	}
	if s.db.DriverName() == driverMySQL {
		queries = []string{
			`CREATE TABLE IF NOT EXISTS endpoints (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				type VARCHAR(32) NOT NULL,
				url TEXT,
				format VARCHAR(16),
				timeout_seconds INTEGER NOT NULL DEFAULT 0,
				retry_attempts INTEGER NOT NULL DEFAULT 0,
				custom_headers TEXT,
				signing_secret TEXT,
				forward_to TEXT,
				recipients TEXT,
				include_attachments BOOLEAN NOT NULL DEFAULT FALSE,
				subject_prefix VARCHAR(255) NOT NULL DEFAULT '',
				sender_name VARCHAR(255) NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_endpoints_active (active)
			)`,
		}
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create endpoints schema: %w", err)
		}
	}

	return nil
}

type endpointRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Type               string         `db:"type"`
	URL                sql.NullString `db:"url"`
	Format             sql.NullString `db:"format"`
	TimeoutSecs        int            `db:"timeout_seconds"`
	RetryAttempts      int            `db:"retry_attempts"`
	CustomHeaders      sql.NullString `db:"custom_headers"`
	SigningSecret      sql.NullString `db:"signing_secret"`
	ForwardTo          sql.NullString `db:"forward_to"`
	Recipients         sql.NullString `db:"recipients"`
	IncludeAttachments bool           `db:"include_attachments"`
	SubjectPrefix      string         `db:"subject_prefix"`
	SenderName         string         `db:"sender_name"`
	Active             bool           `db:"active"`
	CreatedAt          time.Time      `db:"created_at"`
}

const endpointColumns = `id, name, type, url, format, timeout_seconds, retry_attempts,
	custom_headers, signing_secret, forward_to, recipients, include_attachments,
	subject_prefix, sender_name, active, created_at`

// GetByID returns an endpoint by id, or (nil, nil) when none exists
func (s *EndpointService) GetByID(ctx context.Context, id string) (*models.Endpoint, error) {
	query := s.db.Rebind(`SELECT ` + endpointColumns + ` FROM endpoints WHERE id = ?`)

	var row endpointRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query endpoint: %w", err)
	}
	return endpointRowToModel(&row)
}

// ListActive returns all active delivery endpoints
func (s *EndpointService) ListActive(ctx context.Context) ([]*models.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints WHERE active = TRUE ORDER BY created_at ASC`

	var rows []endpointRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}

	endpoints := make([]*models.Endpoint, 0, len(rows))
	for i := range rows {
		endpoint, err := endpointRowToModel(&rows[i])
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}

func endpointRowToModel(row *endpointRow) (*models.Endpoint, error) {
	endpoint := &models.Endpoint{
		ID:                 row.ID,
		Name:               row.Name,
		Type:               models.EndpointType(row.Type),
		URL:                row.URL.String,
		Format:             models.WebhookFormat(row.Format.String),
		TimeoutSecs:        row.TimeoutSecs,
		RetryAttempts:      row.RetryAttempts,
		SigningSecret:      row.SigningSecret.String,
		ForwardTo:          row.ForwardTo.String,
		IncludeAttachments: row.IncludeAttachments,
		SubjectPrefix:      row.SubjectPrefix,
		SenderName:         row.SenderName,
		Active:             row.Active,
		CreatedAt:          row.CreatedAt.UTC(),
	}

	if row.CustomHeaders.Valid && row.CustomHeaders.String != "" {
		if err := json.Unmarshal([]byte(row.CustomHeaders.String), &endpoint.CustomHeaders); err != nil {
			return nil, fmt.Errorf("failed to decode custom headers for %s: %w", row.ID, err)
		}
	}
	if row.Recipients.Valid && row.Recipients.String != "" {
		if err := json.Unmarshal([]byte(row.Recipients.String), &endpoint.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients for %s: %w", row.ID, err)
		}
	}

	return endpoint, nil
}
