package automation

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketAutomations = []byte("automations")
	bucketVersions    = []byte("versions")
)

// boltOpenTimeout bounds how long Open waits for another process's file lock.
const boltOpenTimeout = 5 * time.Second

// BoltBackend stores the catalog in a bbolt database, one key per automation.
// Keys are 8-byte big-endian IDs so cursor order equals ID order, which is
// also insertion order.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens or creates the database at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, catalogFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAutomations, bucketVersions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func idKey(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id)) //nolint:gosec // IDs are positive
	return k
}

// Load reads every automation and its history.
func (b *BoltBackend) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := NewCatalog()
	err := b.db.View(func(tx *bolt.Tx) error {
		autos := tx.Bucket(bucketAutomations)
		versions := tx.Bucket(bucketVersions)
		if autos == nil || versions == nil {
			return nil
		}

		if err := autos.ForEach(func(k, v []byte) error {
			var a Automation
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("%w: automation %x: %v", ErrCorruptCatalog, k, err)
			}
			c.Automations = append(c.Automations, a)
			return nil
		}); err != nil {
			return err
		}

		return versions.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("%w: malformed version key %x", ErrCorruptCatalog, k)
			}
			var records []VersionRecord
			if err := json.Unmarshal(v, &records); err != nil {
				return fmt.Errorf("%w: versions %x: %v", ErrCorruptCatalog, k, err)
			}
			id := int(binary.BigEndian.Uint64(k)) //nolint:gosec // Written by idKey
			c.Versions[versionKey(id)] = records
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	c.normalize()
	return c, nil
}

// Save replaces both buckets in a single transaction.
func (b *BoltBackend) Save(ctx context.Context, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAutomations, bucketVersions} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return fmt.Errorf("clearing bucket %s: %w", name, err)
			}
		}
		autos, err := tx.CreateBucket(bucketAutomations)
		if err != nil {
			return err
		}
		versions, err := tx.CreateBucket(bucketVersions)
		if err != nil {
			return err
		}

		for i := range c.Automations {
			a := &c.Automations[i]
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encoding automation %d: %w", a.ID, err)
			}
			if err := autos.Put(idKey(a.ID), data); err != nil {
				return err
			}
		}

		for i := range c.Automations {
			id := c.Automations[i].ID
			records, ok := c.Versions[versionKey(id)]
			if !ok {
				continue
			}
			data, err := json.Marshal(records)
			if err != nil {
				return fmt.Errorf("encoding versions %d: %w", id, err)
			}
			if err := versions.Put(idKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database file lock.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
