// internal/cache/cache.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is used when a non-positive TTL is configured
const DefaultTTL = time.Hour

// keyPrefix namespaces fetch results inside the store
const keyPrefix = "fetch::"

// Cache defines the interface for fetch result caching implementations.
//
// Implementations must treat unreadable or expired entries as misses; a broken
// cache degrades to a slower fetch, never to a failed one.
type Cache interface {
	// Get retrieves a cached result by key.
	// Returns the cached result and a boolean indicating if the key was found.
	Get(key string) (*models.FetchResult, bool)

	// Set stores a result under key, replacing any previous value and
	// refreshing its timestamp.
	Set(key string, result *models.FetchResult) error

	// Clear removes all cached entries and returns how many were removed.
	Clear() int
}

// entry is the on-disk envelope for one cached value
type entry struct {
	TS    float64             `json:"ts"`
	Value *models.FetchResult `json:"value"`
}

// DiskCache stores one JSON file per key in a directory.
// Expired entries are removed lazily when they are read.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates the cache directory if needed and returns a DiskCache
func NewDiskCache(dir string, ttl time.Duration) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	log.Debug().Str("dir", dir).Dur("ttl", ttl).Msg("Disk cache initialized")
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Key derives the cache key for a request URL
func Key(url string) string {
	return keyPrefix + url
}

// Path returns the file backing key
func (c *DiskCache) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Dir returns the cache directory
func (c *DiskCache) Dir() string {
	return c.dir
}

// Get retrieves a cached result
func (c *DiskCache) Get(key string) (*models.FetchResult, bool) {
	path := c.Path(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Value == nil {
		log.Debug().Str("key", key).Msg("Ignoring unreadable cache entry")
		return nil, false
	}

	age := c.now().Sub(time.Unix(0, int64(e.TS*float64(time.Second))))
	if age > c.ttl {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("key", key).Msg("Failed to remove expired cache entry")
		}
		return nil, false
	}

	log.Debug().Str("key", key).Dur("age", age).Msg("Cache hit")
	return e.Value, true
}

// Set stores a result. The file is written to a temporary name and renamed
// into place so readers never observe a partial write.
func (c *DiskCache) Set(key string, result *models.FetchResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil result")
	}

	now := c.now()
	data, err := json.Marshal(entry{
		TS:    float64(now.UnixNano()) / float64(time.Second),
		Value: result,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit cache file: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int("size_bytes", len(data)).
		Msg("Cached result")
	return nil
}

// Clear removes every cache file. Files that cannot be removed are skipped.
func (c *DiskCache) Clear() int {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}

	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			continue
		}
		removed++
	}

	log.Debug().Int("removed", removed).Msg("Cache cleared")
	return removed
}
