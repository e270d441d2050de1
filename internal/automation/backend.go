package automation

import "context"

// Backend persists the whole catalog.
//
// Load returns an empty catalog when nothing has been stored yet, and an
// error wrapping ErrCorruptCatalog when stored data cannot be decoded.
// Save replaces the stored catalog atomically: after a crash the backend
// holds either the previous or the new catalog, never a mix.
type Backend interface {
	Load(ctx context.Context) (*Catalog, error)
	Save(ctx context.Context, c *Catalog) error
	Close() error
}
