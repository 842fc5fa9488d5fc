package sqlite

import (
	"context"
	"fmt"
)

// prepareStatements prepares all SQL statements for reuse.
func (s *sqliteStore) prepareStatements(ctx context.Context) error {
	if err := s.prepareObjectStatements(ctx); err != nil {
		return err
	}
	return s.prepareSlotStatements(ctx)
}

// prepareObjectStatements prepares all object-related SQL statements.
func (s *sqliteStore) prepareObjectStatements(ctx context.Context) error {
	var err error

	const sqlGetObject = `
		SELECT id, object_type, payload, device, created_at, updated_at
		FROM objects WHERE id = ?`
	if s.stmtGetObject, err = s.db.PrepareContext(ctx, sqlGetObject); err != nil {
		return fmt.Errorf("prepare GetObject: %w", err)
	}

	const sqlSaveObject = `
		INSERT INTO objects (id, object_type, slot, payload, device, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  payload = excluded.payload,
		  device = excluded.device,
		  updated_at = excluded.updated_at`
	if s.stmtSaveObject, err = s.db.PrepareContext(ctx, sqlSaveObject); err != nil {
		return fmt.Errorf("prepare SaveObject: %w", err)
	}

	const sqlDeleteObject = "DELETE FROM objects WHERE id = ?"
	if s.stmtDeleteObject, err = s.db.PrepareContext(ctx, sqlDeleteObject); err != nil {
		return fmt.Errorf("prepare DeleteObject: %w", err)
	}

	const sqlListObjects = `
		SELECT id, object_type, payload, device, created_at, updated_at
		FROM objects ORDER BY id`
	if s.stmtListObjects, err = s.db.PrepareContext(ctx, sqlListObjects); err != nil {
		return fmt.Errorf("prepare ListObjects: %w", err)
	}

	return nil
}

// prepareSlotStatements prepares all slot-related SQL statements.
func (s *sqliteStore) prepareSlotStatements(ctx context.Context) error {
	var err error

	const sqlSaveSlot = `
		INSERT INTO slots (idx, generation, object_type) VALUES (?, ?, ?)
		ON CONFLICT(idx) DO UPDATE SET
		  generation = excluded.generation,
		  object_type = excluded.object_type`
	if s.stmtSaveSlot, err = s.db.PrepareContext(ctx, sqlSaveSlot); err != nil {
		return fmt.Errorf("prepare SaveSlot: %w", err)
	}

	const sqlListSlots = "SELECT idx, generation, object_type FROM slots ORDER BY idx"
	if s.stmtListSlots, err = s.db.PrepareContext(ctx, sqlListSlots); err != nil {
		return fmt.Errorf("prepare ListSlots: %w", err)
	}

	return nil
}
