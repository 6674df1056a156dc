package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend persists the document as one pretty-printed JSON file. The
// file is fully rewritten on every save via a temp-file rename.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to path, making the parent
// directory as needed.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

// Load reads and parses the persisted document. A missing or unparsable
// file returns an error; the store treats that as an empty start.
func (b *FileBackend) Load() (*Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d in %s", doc.SchemaVersion, b.path)
	}
	return doc, nil
}

// Save rewrites the whole document.
func (b *FileBackend) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
