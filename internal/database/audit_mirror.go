package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// AuditMirror copies audit entries into Postgres for querying. The file
// partitions stay the source of truth; mirror failures never block the
// pipeline.
type AuditMirror struct {
	db *sql.DB
}

// NewAuditMirror creates a mirror over an open database connection.
func NewAuditMirror(db *sql.DB) *AuditMirror {
	return &AuditMirror{db: db}
}

// EnsureSchema creates the audit mirror table when it does not exist yet.
func (m *AuditMirror) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			entry_id UUID PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			action_type VARCHAR(64) NOT NULL,
			actor VARCHAR(32) NOT NULL,
			target TEXT NOT NULL,
			parameters JSONB,
			approval_status VARCHAR(32) NOT NULL,
			approver VARCHAR(255),
			connector VARCHAR(255),
			result VARCHAR(32) NOT NULL,
			error_message TEXT,
			error_code VARCHAR(64),
			duration_ms DOUBLE PRECISION,
			approval_request_id VARCHAR(255),
			metadata JSONB
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_entries table: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries (ts)
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_entries index: %w", err)
	}
	return nil
}

// Log inserts one entry. Entries arrive already sanitized and validated.
func (m *AuditMirror) Log(ctx context.Context, entry models.AuditLogEntry) error {
	var paramsJSON, metadataJSON []byte
	var err error
	if entry.Parameters != nil {
		paramsJSON, err = json.Marshal(entry.Parameters)
		if err != nil {
			return fmt.Errorf("failed to marshal parameters: %w", err)
		}
	}
	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (
			entry_id, ts, action_type, actor, target, parameters,
			approval_status, approver, connector, result,
			error_message, error_code, duration_ms, approval_request_id, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (entry_id) DO NOTHING
	`

	_, err = m.db.ExecContext(ctx, query,
		entry.EntryID,
		entry.Timestamp,
		entry.ActionType,
		entry.Actor,
		entry.Target,
		paramsJSON,
		entry.ApprovalStatus,
		nullable(entry.Approver),
		nullable(entry.Connector),
		entry.Result,
		nullable(entry.ErrorMessage),
		nullable(entry.ErrorCode),
		entry.DurationMs,
		nullable(entry.ApprovalID),
		metadataJSON,
	)
	return err
}

// Recent retrieves the newest mirrored entries, optionally filtered by
// connector.
func (m *AuditMirror) Recent(ctx context.Context, limit int, connector string) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT entry_id, ts, action_type, actor, target, parameters,
		       approval_status, approver, connector, result,
		       error_message, error_code, duration_ms, approval_request_id, metadata
		FROM audit_entries
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if connector != "" {
		query += fmt.Sprintf(" AND connector = $%d", argPos)
		args = append(args, connector)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAuditEntry(rows *sql.Rows) (models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var ts time.Time
	var paramsJSON, metadataJSON []byte
	var approver, connector, errorMessage, errorCode, approvalID sql.NullString

	err := rows.Scan(
		&entry.EntryID,
		&ts,
		&entry.ActionType,
		&entry.Actor,
		&entry.Target,
		&paramsJSON,
		&entry.ApprovalStatus,
		&approver,
		&connector,
		&entry.Result,
		&errorMessage,
		&errorCode,
		&entry.DurationMs,
		&approvalID,
		&metadataJSON,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan audit entry: %w", err)
	}

	entry.Timestamp = ts
	entry.Approver = approver.String
	entry.Connector = connector.String
	entry.ErrorMessage = errorMessage.String
	entry.ErrorCode = errorCode.String
	entry.ApprovalID = approvalID.String

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &entry.Parameters); err != nil {
			return entry, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return entry, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return entry, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
