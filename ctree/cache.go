package ctree

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// ErrCacheCorrupt marks a cache entry that exists but cannot be decoded. It
// is always handled as a cache miss and never propagates past the owning
// translation unit.
var ErrCacheCorrupt = errors.New("corrupted cache entry")

// cacheFormat is bumped whenever the serialized tree layout changes, so stale
// entries from older builds decode as corrupt instead of as garbage trees.
const cacheFormat = 1

// Fingerprint identifies the exact content of a translation unit. It is the
// cache key: two files with equal fingerprints produce equal trees, so
// concurrent writers for the same key may race with last-writer-wins.
type Fingerprint uint64

// FingerprintBytes hashes file content into its cache key.
func FingerprintBytes(content []byte) Fingerprint {
	return Fingerprint(xxh3.Hash(content))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Cache is a fingerprint-keyed store of serialized trees on disk. One entry
// per fingerprint, one file per entry. The directory is shared across
// invocations; deleting it entirely is equivalent to a cold run.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. The directory is created lazily on
// the first store.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

type cacheEntry struct {
	Format  int    `json:"format"`
	Dialect string `json:"dialect"`
	Tree    *Tree  `json:"tree"`
}

// Load returns the tree stored under fp, os.ErrNotExist when there is none,
// or ErrCacheCorrupt when the entry cannot be decoded.
func (c *Cache) Load(fp Fingerprint, dialect Dialect) (*Tree, error) {
	raw, err := os.ReadFile(c.entryPath(fp))
	if err != nil {
		return nil, err
	}

	entry := cacheEntry{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCacheCorrupt, err.Error())
	}
	if entry.Format != cacheFormat || entry.Dialect != string(dialect) || entry.Tree == nil {
		return nil, fmt.Errorf("%w: format or dialect mismatch", ErrCacheCorrupt)
	}
	return entry.Tree, nil
}

// Store persists the tree under fp, overwriting any previous entry.
func (c *Cache) Store(fp Fingerprint, dialect Dialect, tree *Tree) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	raw, err := json.Marshal(cacheEntry{Format: cacheFormat, Dialect: string(dialect), Tree: tree})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(fp), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *Cache) entryPath(fp Fingerprint) string {
	return filepath.Join(c.dir, fp.String()+".json")
}
