package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
)

const dateLayout = "2006-01-02"

const movementColumns = `id, fecha, descripcion, detalle, monto, categoria, subcategoria, confianza, fuente, batch_id`

// SaveMovements inserts movements and returns their assigned IDs in input order.
func (s *SQLiteStorage) SaveMovements(ctx context.Context, movements []model.Movement) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMovements(movements); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := saveMovements(ctx, tx, movements)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to commit movements: %w", err))
	}
	return ids, nil
}

func saveMovements(ctx context.Context, q querier, movements []model.Movement) ([]int64, error) {
	ids := make([]int64, 0, len(movements))
	for i := range movements {
		m := &movements[i]
		result, err := q.ExecContext(ctx, `
			INSERT INTO movimientos (
				fecha, descripcion, detalle, monto, categoria, subcategoria, confianza, fuente, batch_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			calendarDay(m.Fecha), m.Descripcion, m.Detalle, m.Monto.String(),
			m.Categoria, m.Subcategoria, m.Confianza, string(m.Fuente), nullInt64(m.BatchID),
		)
		if err != nil {
			return nil, wrapBusy(fmt.Errorf("failed to insert movement at index %d: %w", i, err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get movement ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetMovement retrieves a single movement.
func (s *SQLiteStorage) GetMovement(ctx context.Context, id int64) (*model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getMovement(ctx, s.db, id)
}

func getMovement(ctx context.Context, q querier, id int64) (*model.Movement, error) {
	row := q.QueryRowContext(ctx, `SELECT `+movementColumns+` FROM movimientos WHERE id = ?`, id)
	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("movement %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return m, nil
}

// GetMovements returns the candidate movements for a classification run, ordered by id.
func (s *SQLiteStorage) GetMovements(ctx context.Context, filter service.MovementFilter) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMovementFilter(filter); err != nil {
		return nil, err
	}
	return getMovements(ctx, s.db, filter)
}

func getMovements(ctx context.Context, q querier, filter service.MovementFilter) ([]model.Movement, error) {
	var (
		where []string
		args  []any
	)

	if filter.OnlyUncategorized {
		where = append(where, "(categoria = '' OR categoria = ?)")
		args = append(args, model.CategoryLegacyUnset)
	}
	if filter.BatchID != nil {
		where = append(where, "batch_id = ?")
		args = append(args, *filter.BatchID)
	}
	if filter.Month != "" {
		where = append(where, "strftime('%Y-%m', fecha) = ?")
		args = append(args, filter.Month)
	}
	if filter.ConfidenceBelow != nil {
		where = append(where, "confianza < ?")
		args = append(args, *filter.ConfidenceBelow)
	}

	query := `SELECT ` + movementColumns + ` FROM movimientos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return queryMovements(ctx, q, query, args...)
}

// GetMovementsInScope returns every movement inside an upgrade scope, ordered by id.
func (s *SQLiteStorage) GetMovementsInScope(ctx context.Context, scope service.UpgradeScope) ([]model.Movement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	return getMovementsInScope(ctx, s.db, scope)
}

func getMovementsInScope(ctx context.Context, q querier, scope service.UpgradeScope) ([]model.Movement, error) {
	var (
		where []string
		args  []any
	)

	if scope.BatchID != nil {
		where = append(where, "batch_id = ?")
		args = append(args, *scope.BatchID)
	}
	if scope.Desde != nil {
		where = append(where, "date(fecha) >= ?")
		args = append(args, scope.Desde.Format(dateLayout))
	}
	if scope.Hasta != nil {
		where = append(where, "date(fecha) <= ?")
		args = append(args, scope.Hasta.Format(dateLayout))
	}

	query := `SELECT ` + movementColumns + ` FROM movimientos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	return queryMovements(ctx, q, query, args...)
}

// UpdateMovementClassifications writes categoria, subcategoria, confianza and fuente.
func (s *SQLiteStorage) UpdateMovementClassifications(ctx context.Context, movements []model.Movement) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateClassifications(movements); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBusy(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateMovementClassifications(ctx, tx, movements); err != nil {
		return err
	}

	return wrapBusy(tx.Commit())
}

func updateMovementClassifications(ctx context.Context, q querier, movements []model.Movement) error {
	now := time.Now().UTC()
	for _, m := range movements {
		result, err := q.ExecContext(ctx, `
			UPDATE movimientos
			SET categoria = ?, subcategoria = ?, confianza = ?, fuente = ?, updated_at = ?
			WHERE id = ?`,
			m.Categoria, m.Subcategoria, m.Confianza, string(m.Fuente), now, m.ID,
		)
		if err != nil {
			return wrapBusy(fmt.Errorf("failed to update movement %d: %w", m.ID, err))
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("movement %d: %w", m.ID, common.ErrNotFound)
		}
	}
	return nil
}

func queryMovements(ctx context.Context, q querier, query string, args ...any) ([]model.Movement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapBusy(fmt.Errorf("failed to query movements: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var movements []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}

	return movements, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovement(row scanner) (*model.Movement, error) {
	var (
		m       model.Movement
		fuente  string
		batchID sql.NullInt64
	)
	err := row.Scan(
		&m.ID, &m.Fecha, &m.Descripcion, &m.Detalle, &m.Monto,
		&m.Categoria, &m.Subcategoria, &m.Confianza, &fuente, &batchID,
	)
	if err != nil {
		return nil, err
	}

	m.Fuente = model.ParseFuente(fuente)
	m.Confianza = model.ClampConfidence(m.Confianza)
	if batchID.Valid {
		id := batchID.Int64
		m.BatchID = &id
	}
	return &m, nil
}

// calendarDay keeps the calendar date of t in its own zone as UTC midnight, so
// date filters see the day printed on the statement.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
