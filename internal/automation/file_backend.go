package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	catalogDirPerm  = 0750
	catalogFilePerm = 0600
)

// FileBackend stores the catalog as one indented JSON document.
// Writes go to a temporary file in the same directory which is synced and
// then renamed over the target.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the document at path. The file is
// not touched until the first Load or Save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads and decodes the document. A missing file yields an empty catalog.
func (b *FileBackend) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCatalog(), nil
		}
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCatalog, b.path, err)
	}
	c.normalize()
	return &c, nil
}

// Save writes the whole catalog and replaces the document in one rename.
func (b *FileBackend) Save(ctx context.Context, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, catalogDirPerm); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName) //nolint:errcheck // Best effort cleanup on error path
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, catalogFilePerm); err != nil {
		return fmt.Errorf("setting catalog permissions: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replacing catalog: %w", err)
	}
	committed = true
	return nil
}

// Close is a no-op; FileBackend holds no open handles between calls.
func (b *FileBackend) Close() error {
	return nil
}
