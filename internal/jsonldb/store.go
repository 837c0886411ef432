// Package jsonldb stores item rows in a local JSONL file, one JSON array of
// cells per line.
package jsonldb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/imladris/internal/sheetdb"
)

// Store is a sheetdb.Store persisted to a JSONL file.
//
// Every row is kept in memory; mutations rewrite the whole file.
type Store struct {
	path string
	mu   sync.Mutex
	rows []sheetdb.Row
}

var _ sheetdb.Store = (*Store)(nil)

// Open creates a new Store and loads all rows from the file. A missing file
// is an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row sheetdb.Row
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal line %d of %s: %w", n, s.path, err)
		}
		s.rows = append(s.rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// FetchAll implements sheetdb.Store.
func (s *Store) FetchAll(ctx context.Context) (*sheetdb.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]sheetdb.Row, len(s.rows))
	for i, r := range s.rows {
		rows[i] = r.Clone()
	}
	return &sheetdb.Sheet{FirstRow: sheetdb.DefaultFirstRow, Rows: rows}, nil
}

// Append implements sheetdb.Store. The line is appended without rewriting
// the file.
func (s *Store) Append(ctx context.Context, row sheetdb.Row) error {
	if len(row) > sheetdb.Width {
		return fmt.Errorf("%w: got %d cells, at most %d supported", sheetdb.ErrRowWidth, len(row), sheetdb.Width)
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	s.rows = append(s.rows, row.Clone())
	return nil
}

// BatchUpdate implements sheetdb.Store.
func (s *Store) BatchUpdate(ctx context.Context, positions []int, rows []sheetdb.Row) error {
	if len(positions) != len(rows) {
		return sheetdb.ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]sheetdb.Row, len(s.rows))
	copy(next, s.rows)
	for i, pos := range positions {
		if !rows[i].FullWidth() {
			slog.WarnContext(ctx, "Skipping row with wrong number of columns", "row", pos, "cells", len(rows[i]))
			continue
		}
		idx := pos - sheetdb.DefaultFirstRow
		if idx < 0 {
			return fmt.Errorf("row %d is before the data range", pos)
		}
		for idx >= len(next) {
			next = append(next, nil)
		}
		next[idx] = rows[i].Clone()
	}
	return s.replace(next)
}

// DeleteRows implements sheetdb.Store.
func (s *Store) DeleteRows(ctx context.Context, positions []int) error {
	if len(positions) == 0 {
		slog.WarnContext(ctx, "No rows to delete")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]sheetdb.Row, len(s.rows))
	copy(next, s.rows)
	for _, pos := range sheetdb.DeletionOrder(positions) {
		idx := pos - sheetdb.DefaultFirstRow
		if idx < 0 || idx >= len(next) {
			continue
		}
		next = append(next[:idx], next[idx+1:]...)
	}
	return s.replace(next)
}

// replace writes rows to a temporary file renamed over the backing file,
// then makes them current. s.mu must be held.
func (s *Store) replace(rows []sheetdb.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	w := bufio.NewWriter(tmp)
	for _, row := range rows {
		if row == nil {
			row = sheetdb.Row{}
		}
		data, err := json.Marshal(row)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	s.rows = rows
	return nil
}
