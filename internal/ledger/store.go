// Package ledger persists run results. A snapshot on disk is always either
// the previous complete ledger or the new complete ledger: the new one is
// written to a temporary file in the same directory and renamed over the
// canonical path.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/types"
)

// ErrPersist wraps every failure to write the ledger
var ErrPersist = errors.New("failed to persist ledger")

// Store writes ledgers to a canonical path
type Store struct {
	path       string
	keepBackup bool
}

// NewStore creates a store for path. With keepBackup the previous snapshot
// is copied to path+".bak" before it is replaced.
func NewStore(path string, keepBackup bool) *Store {
	return &Store{path: path, keepBackup: keepBackup}
}

// Path returns the canonical ledger path
func (s *Store) Path() string {
	return s.path
}

// Save encodes the ledger in catalog order and replaces the canonical file
func (s *Store) Save(ledger *types.Ledger) error {
	data, err := catalog.Encode(ledger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return s.write(data)
}

// SaveCatalog replaces the canonical file with a catalog, such as one
// bootstrapped from an API description
func (s *Store) SaveCatalog(c *catalog.Catalog) error {
	data, err := catalog.Encode(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return s.write(data)
}

func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %w", ErrPersist, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", ErrPersist, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: failed to write temp file: %w", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: failed to sync temp file: %w", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to close temp file: %w", ErrPersist, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to chmod temp file: %w", ErrPersist, err)
	}

	if s.keepBackup {
		if err := copyFile(s.path, s.path+".bak"); err != nil && !os.IsNotExist(err) {
			cleanup()
			return fmt.Errorf("%w: failed to back up previous ledger: %w", ErrPersist, err)
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to replace %s: %w", ErrPersist, s.path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Load reads a ledger file. Entries that were never tested (plain catalog
// entries without a test_result) are kept with an empty Result.
func Load(path string) (*types.Ledger, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	return FromCatalog(c)
}

// FromCatalog decodes catalog entries as outcomes. Malformed entries are skipped.
func FromCatalog(c *catalog.Catalog) (*types.Ledger, error) {
	ledger := types.NewTree[types.Outcome]()
	var decodeErr error
	c.Walk(func(category, method string, e catalog.Entry) {
		if decodeErr != nil || e.Malformed {
			return
		}
		var o types.Outcome
		if err := o.UnmarshalJSON(e.Raw); err != nil {
			decodeErr = fmt.Errorf("%s %s %s: %w", category, method, e.Endpoint, err)
			return
		}
		ledger.Append(category, method, o)
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return ledger, nil
}
