package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/interpreter/store"
)

// GetObject retrieves an object record by handle.
// Returns store.ErrNotFound if no record exists.
func (s *sqliteStore) GetObject(ctx context.Context, id hostif.ObjectID) (interpreter.StoredObject, error) {
	start := time.Now()
	row := s.stmtGetObject.QueryRowContext(ctx, int64(id))

	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("sql", "stmt", "GetObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "rows", 0)
		return interpreter.StoredObject{}, fmt.Errorf("object %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		s.logger.Debug("sql", "stmt", "GetObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "error", err)
		return interpreter.StoredObject{}, err
	}
	s.logger.Debug("sql", "stmt", "GetObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "rows", 1)
	return obj, nil
}

// SaveObject inserts or replaces an object record. The slot row for the
// object's handle must already exist.
func (s *sqliteStore) SaveObject(ctx context.Context, obj hostif.Object, device string) error {
	id := obj.ObjectID()
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	var dev sql.NullString
	if device != "" {
		dev = sql.NullString{String: device, Valid: true}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	start := time.Now()
	_, err = s.stmtSaveObject.ExecContext(ctx, int64(id), id.Type().String(), int64(id.Index()), string(payload), dev, now, now)
	if err != nil {
		s.logger.Debug("sql", "stmt", "SaveObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("save %s: %w", id, err)
	}
	s.logger.Debug("sql", "stmt", "SaveObject", "args", []any{id, id.Type().String(), device}, "duration_ms", msec(time.Since(start)))
	return nil
}

// DeleteObject removes an object record.
// Returns store.ErrNotFound if no record exists.
func (s *sqliteStore) DeleteObject(ctx context.Context, id hostif.ObjectID) error {
	start := time.Now()
	result, err := s.stmtDeleteObject.ExecContext(ctx, int64(id))
	if err != nil {
		s.logger.Debug("sql", "stmt", "DeleteObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.logger.Debug("sql", "stmt", "DeleteObject", "args", []any{id}, "duration_ms", msec(time.Since(start)), "rows_affected", rows)
	if rows == 0 {
		return fmt.Errorf("object %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListObjects returns every object record in handle order.
func (s *sqliteStore) ListObjects(ctx context.Context) ([]interpreter.StoredObject, error) {
	start := time.Now()
	rows, err := s.stmtListObjects.QueryContext(ctx)
	if err != nil {
		s.logger.Debug("sql", "stmt", "ListObjects", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var out []interpreter.StoredObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	s.logger.Debug("sql", "stmt", "ListObjects", "duration_ms", msec(time.Since(start)), "rows", len(out))
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (interpreter.StoredObject, error) {
	var (
		id                   int64
		typeStr, payload     string
		device               sql.NullString
		createdStr, updatedS string
	)
	if err := row.Scan(&id, &typeStr, &payload, &device, &createdStr, &updatedS); err != nil {
		return interpreter.StoredObject{}, err
	}

	t, ok := hostif.ParseObjectType(typeStr)
	if !ok {
		return interpreter.StoredObject{}, fmt.Errorf("object %d: invalid object type %q", id, typeStr)
	}
	obj, err := hostif.DecodeObject(t, []byte(payload))
	if err != nil {
		return interpreter.StoredObject{}, fmt.Errorf("object %d: %w", id, err)
	}
	if obj.ObjectID() != hostif.ObjectID(id) {
		return interpreter.StoredObject{}, fmt.Errorf("object %d: payload carries %s", id, obj.ObjectID())
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return interpreter.StoredObject{}, fmt.Errorf("invalid created_at timestamp %q: %w", createdStr, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updatedS)
	if err != nil {
		return interpreter.StoredObject{}, fmt.Errorf("invalid updated_at timestamp %q: %w", updatedS, err)
	}

	return interpreter.StoredObject{
		Object:    obj,
		Device:    device.String,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
