package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/google/uuid"
)

// AppendAudit writes an audit entry. Entries are never updated or deleted;
// the schema rejects both with triggers.
func (s *SQLiteStorage) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEntry(entry); err != nil {
		return err
	}
	return appendAudit(ctx, s.db, entry)
}

func appendAudit(ctx context.Context, q querier, entry *model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	before, err := marshalState(entry.Before)
	if err != nil {
		return fmt.Errorf("failed to encode audit before state: %w", err)
	}
	after, err := marshalState(entry.After)
	if err != nil {
		return fmt.Errorf("failed to encode audit after state: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, entity, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, entry.Action, entry.Entity, before, after, entry.Timestamp.UTC(),
	)
	if err != nil {
		return wrapBusy(fmt.Errorf("failed to append audit entry: %w", err))
	}
	return nil
}

// GetAuditEntries lists audit entries, newest first.
func (s *SQLiteStorage) GetAuditEntries(ctx context.Context, filter service.AuditFilter) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getAuditEntries(ctx, s.db, filter)
}

func getAuditEntries(ctx context.Context, q querier, filter service.AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, actor, action, entity, before_json, after_json, created_at FROM audit_log`
	var args []any
	if filter.Action != "" {
		query += " WHERE action = ?"
		args = append(args, filter.Action)
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to query audit log: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e             model.AuditEntry
			before, after sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &before, &after, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.Before, err = unmarshalState(before); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
		}
		if e.After, err = unmarshalState(after); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}

func marshalState(state map[string]any) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalState(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(raw.String), &state); err != nil {
		return nil, fmt.Errorf("failed to decode audit state: %w", err)
	}
	return state, nil
}
