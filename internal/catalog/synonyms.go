package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// SynonymFileStore reads the synonym index from a JSON object mapping each
// program key to a list of alternate phrasings. Key order is preserved.
type SynonymFileStore struct {
	path string
}

// NewSynonymFileStore creates a synonym store for the given JSON file.
func NewSynonymFileStore(path string) *SynonymFileStore {
	slog.Debug("Creating SynonymFileStore", "path", path)
	return &SynonymFileStore{path: path}
}

// ReadAll implements SynonymStore.
func (s *SynonymFileStore) ReadAll(ctx context.Context) (models.SynonymIndex, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("Synonyms ReadAll failed to read file", "error", err, "path", s.path)
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	index, err := ParseSynonyms(data)
	if err != nil {
		slog.Error("Synonyms ReadAll failed to parse file", "error", err, "path", s.path)
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
	}
	slog.Debug("Synonyms ReadAll succeeded", "keys", len(index))
	return index, nil
}

// ParseSynonyms decodes an ordered synonym object. A null list is treated as empty.
func ParseSynonyms(data []byte) (models.SynonymIndex, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("synonyms: expected object, got %v", tok)
	}

	var index models.SynonymIndex
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("synonyms: expected string key, got %v", keyTok)
		}
		var variants []string
		if err := dec.Decode(&variants); err != nil {
			return nil, fmt.Errorf("synonyms: key %q: %w", key, err)
		}
		index = append(index, models.SynonymGroup{Key: key, Variants: variants})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return index, nil
}

// MemorySynonymStore serves a fixed index.
type MemorySynonymStore struct {
	Index models.SynonymIndex
	Err   error
}

// ReadAll implements SynonymStore.
func (m *MemorySynonymStore) ReadAll(ctx context.Context) (models.SynonymIndex, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Index, nil
}
