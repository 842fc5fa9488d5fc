package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/registry"
)

// SaveSlot inserts or updates the state of an arena slot.
func (s *sqliteStore) SaveSlot(ctx context.Context, state registry.SlotState) error {
	var typ string
	if state.Type != hostif.ObjectTypeNull {
		typ = state.Type.String()
	}

	start := time.Now()
	if _, err := s.stmtSaveSlot.ExecContext(ctx, int64(state.Index), int64(state.Generation), typ); err != nil {
		s.logger.Debug("sql", "stmt", "SaveSlot", "args", []any{state.Index, state.Generation, typ}, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("save slot %d: %w", state.Index, err)
	}
	s.logger.Debug("sql", "stmt", "SaveSlot", "args", []any{state.Index, state.Generation, typ}, "duration_ms", msec(time.Since(start)))
	return nil
}

// ListSlots returns every recorded slot in index order.
func (s *sqliteStore) ListSlots(ctx context.Context) ([]registry.SlotState, error) {
	start := time.Now()
	rows, err := s.stmtListSlots.QueryContext(ctx)
	if err != nil {
		s.logger.Debug("sql", "stmt", "ListSlots", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []registry.SlotState
	for rows.Next() {
		var (
			idx, gen int64
			typ      string
		)
		if err := rows.Scan(&idx, &gen, &typ); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		st := registry.SlotState{Index: uint32(idx), Generation: uint32(gen)}
		if typ != "" {
			t, ok := hostif.ParseObjectType(typ)
			if !ok {
				return nil, fmt.Errorf("slot %d: invalid object type %q", idx, typ)
			}
			st.Type = t
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	s.logger.Debug("sql", "stmt", "ListSlots", "duration_ms", msec(time.Since(start)), "rows", len(out))
	return out, nil
}
