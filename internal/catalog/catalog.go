// Package catalog provides read access to the program catalog, the synonym
// index and the editable content texts, plus the program matcher and the
// schedule resolver built on top of them.
//
// All stores re-read their backing file on every call: the files are edited
// externally while the bot runs, so no snapshot is trusted across messages.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/util"
)

// ErrUnavailable is returned when a backing file cannot be read or parsed.
var ErrUnavailable = errors.New("catalog source unavailable")

// Store is the read-only catalog contract consumed by the conversation flow.
type Store interface {
	// ReadAll returns every valid entry in catalog order.
	ReadAll(ctx context.Context) ([]models.ProgramEntry, error)
	// ReadOne re-resolves an entry by (programName, edition), comparing normalized text.
	ReadOne(ctx context.Context, programName, edition string) (models.ProgramEntry, bool, error)
}

// SynonymStore returns the current synonym index.
type SynonymStore interface {
	ReadAll(ctx context.Context) (models.SynonymIndex, error)
}

// ContentStore returns the current editable content texts.
type ContentStore interface {
	Read(ctx context.Context) (models.Content, error)
}

// FileStore reads the catalog from a JSON file (an array of spreadsheet rows,
// or a single row object).
type FileStore struct {
	path string
}

// NewFileStore creates a catalog store for the given JSON file.
func NewFileStore(path string) *FileStore {
	slog.Debug("Creating catalog FileStore", "path", path)
	return &FileStore{path: path}
}

// ReadAll implements Store. Rows failing validation are quarantined with a warning.
func (s *FileStore) ReadAll(ctx context.Context) ([]models.ProgramEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("Catalog ReadAll failed to read file", "error", err, "path", s.path)
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	rows, err := decodeRows(data)
	if err != nil {
		slog.Error("Catalog ReadAll failed to parse file", "error", err, "path", s.path)
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
	}

	entries := make([]models.ProgramEntry, 0, len(rows))
	for i, row := range rows {
		entry := row.Entry()
		if err := entry.Validate(); err != nil {
			slog.Warn("Catalog row quarantined", "index", i, "error", err, "path", s.path)
			continue
		}
		entries = append(entries, entry)
	}
	slog.Debug("Catalog ReadAll succeeded", "rows", len(rows), "entries", len(entries))
	return entries, nil
}

// ReadOne implements Store.
func (s *FileStore) ReadOne(ctx context.Context, programName, edition string) (models.ProgramEntry, bool, error) {
	entries, err := s.ReadAll(ctx)
	if err != nil {
		return models.ProgramEntry{}, false, err
	}
	entry, ok := FindEntry(entries, programName, edition)
	return entry, ok, nil
}

// FindEntry locates the first entry whose program name and edition normalize equal
// to the given values.
func FindEntry(entries []models.ProgramEntry, programName, edition string) (models.ProgramEntry, bool) {
	wantName := util.Normalize(programName)
	wantEdition := util.Normalize(edition)
	for _, e := range entries {
		if util.Normalize(e.ProgramName) == wantName && util.Normalize(e.Edition) == wantEdition {
			return e, true
		}
	}
	return models.ProgramEntry{}, false
}

func decodeRows(data []byte) ([]models.CatalogRow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var row models.CatalogRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, err
		}
		return []models.CatalogRow{row}, nil
	}
	var rows []models.CatalogRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MemoryStore is a mutable in-memory catalog, used by tests and tools.
type MemoryStore struct {
	Entries []models.ProgramEntry
	Err     error
}

// ReadAll implements Store.
func (m *MemoryStore) ReadAll(ctx context.Context) ([]models.ProgramEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.ProgramEntry, len(m.Entries))
	copy(out, m.Entries)
	return out, nil
}

// ReadOne implements Store.
func (m *MemoryStore) ReadOne(ctx context.Context, programName, edition string) (models.ProgramEntry, bool, error) {
	if m.Err != nil {
		return models.ProgramEntry{}, false, m.Err
	}
	entry, ok := FindEntry(m.Entries, programName, edition)
	return entry, ok, nil
}

// Remove deletes every entry of the named program.
func (m *MemoryStore) Remove(programName string) {
	kept := m.Entries[:0]
	for _, e := range m.Entries {
		if util.Normalize(e.ProgramName) != util.Normalize(programName) {
			kept = append(kept, e)
		}
	}
	m.Entries = kept
}
