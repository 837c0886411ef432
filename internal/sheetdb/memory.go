package sheetdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryStore is a Store held in process memory.
//
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	firstRow int
	rows     []Row
}

// NewMemoryStore returns a MemoryStore holding a copy of rows, the first one
// at remote position DefaultFirstRow.
func NewMemoryStore(rows ...Row) *MemoryStore {
	m := &MemoryStore{firstRow: DefaultFirstRow}
	for _, r := range rows {
		m.rows = append(m.rows, r.Clone())
	}
	return m
}

// Rows returns a copy of the stored rows.
func (m *MemoryStore) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out
}

// FetchAll implements Store.
func (m *MemoryStore) FetchAll(ctx context.Context) (*Sheet, error) {
	return &Sheet{FirstRow: m.firstRow, Rows: m.Rows()}, nil
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, row Row) error {
	if len(row) > Width {
		return fmt.Errorf("%w: got %d cells, at most %d supported", ErrRowWidth, len(row), Width)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row.Clone())
	return nil
}

// BatchUpdate implements Store.
func (m *MemoryStore) BatchUpdate(ctx context.Context, positions []int, rows []Row) error {
	if len(positions) != len(rows) {
		return ErrLengthMismatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range positions {
		if pos < m.firstRow {
			return fmt.Errorf("row %d is before the data range", pos)
		}
	}
	for i, pos := range positions {
		if !rows[i].FullWidth() {
			slog.WarnContext(ctx, "Skipping row with wrong number of columns", "row", pos, "cells", len(rows[i]))
			continue
		}
		idx := pos - m.firstRow
		for idx >= len(m.rows) {
			m.rows = append(m.rows, nil)
		}
		m.rows[idx] = rows[i].Clone()
	}
	return nil
}

// DeleteRows implements Store.
func (m *MemoryStore) DeleteRows(ctx context.Context, positions []int) error {
	if len(positions) == 0 {
		slog.WarnContext(ctx, "No rows to delete")
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range DeletionOrder(positions) {
		idx := pos - m.firstRow
		if idx < 0 || idx >= len(m.rows) {
			continue
		}
		m.rows = append(m.rows[:idx], m.rows[idx+1:]...)
	}
	return nil
}
