// Package cache implements the persistent analyzer result store. One run
// shares a single on-disk store per project root, keyed by content hash and
// analyzer, so renames and reverts hit without re-analysis while any content
// change misses. Writes are batched in memory and flushed once through a
// temp file and atomic rename; a crashed run leaves the previous store
// intact.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/panbanda/vitals/pkg/models"
	"github.com/zeebo/blake3"
)

// shedBatch is the write-through batch size after a memory shed: every N
// stores the buffer is flushed and result blobs are dropped.
const shedBatch = 64

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Entry is one cached analyzer result in the on-disk store.
type Entry struct {
	Hash            string    `json:"hash"`
	ModTime         time.Time `json:"mtime"`
	Size            int64     `json:"size"`
	LastAccessed    time.Time `json:"last_accessed"`
	AnalyzerID      string    `json:"analyzer_id"`
	AnalyzerVersion string    `json:"analyzer_version"`
	Result          []byte    `json:"result_blob"`
}

// Options configures a cache instance.
type Options struct {
	Enabled    bool
	MaxEntries int
	MaxBytes   int64
	// OnIssue receives recoverable CacheErrors (corrupt store moved aside,
	// failed reads). The run continues without the affected entries.
	OnIssue func(error)
}

// Cache is the analyzer result store for one project root. All methods are
// safe for concurrent use.
type Cache struct {
	path    string
	enabled bool
	maxEnt  int
	maxByt  int64
	onIssue func(error)

	mu      sync.Mutex
	entries map[string]*Entry
	dirty   map[string]bool
	// pinned keys were looked up or stored this run; eviction never
	// touches them.
	pinned  map[string]bool
	shed    bool
	pending int
}

// Disabled returns a cache where every lookup misses and stores are
// discarded.
func Disabled() *Cache {
	return &Cache{enabled: false}
}

// Open loads (or creates) the store for the given root inside dir. A store
// that fails to decode is moved aside to a .corrupt file and the cache
// starts empty; only failure to clear the slot afterwards is fatal, since
// the next flush could not persist anything either.
func Open(dir, root string, opts Options) (*Cache, error) {
	if !opts.Enabled {
		return Disabled(), nil
	}

	c := &Cache{
		path:    StorePath(dir, root),
		enabled: true,
		maxEnt:  opts.MaxEntries,
		maxByt:  opts.MaxBytes,
		onIssue: opts.OnIssue,
		dirty:   make(map[string]bool),
		pinned:  make(map[string]bool),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		// Nothing can be persisted; degrade to a pass-through run.
		c.report(&models.CacheError{Op: "mkdir", Err: err})
		c.enabled = false
		return c, nil
	}

	entries, err := readStore(c.path)
	if err != nil {
		if errors.Is(err, errCorrupt) {
			if mvErr := os.Rename(c.path, c.path+".corrupt"); mvErr != nil {
				if rmErr := os.Remove(c.path); rmErr != nil {
					return nil, &models.FatalError{
						Reason: "cache store corrupt and cannot be replaced at " + c.path,
						Err:    errors.Join(err, rmErr),
					}
				}
			}
		}
		c.report(&models.CacheError{Op: "open", Err: err})
		entries = make(map[string]*Entry)
	}
	c.entries = entries
	return c, nil
}

// StorePath returns the store file for a root inside dir. The root path is
// hashed so stores for different projects can share a cache directory.
func StorePath(dir, root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := blake3.Sum256([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:16])+".json")
}

// errCorrupt tags store files that exist but cannot be decoded.
var errCorrupt = errors.New("cache store corrupt")

func readStore(path string) (map[string]*Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]*Entry), nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]*Entry
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if m == nil {
		m = make(map[string]*Entry)
	}
	return m, nil
}

// Enabled reports whether the cache persists anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Path returns the on-disk store file, empty when disabled.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) report(err error) {
	if c.onIssue != nil {
		c.onIssue(err)
	}
}

// key builds the entry key. The analyzer version is deliberately not part
// of the key: a version bump should overwrite the old entry in place
// instead of stranding it until eviction.
func key(fileHash, analyzerID string) string {
	return fileHash + ":" + analyzerID
}

// Lookup returns the stored result for a file and analyzer. Misses on
// version mismatch and after a shed has dropped the blob; both cases mean
// the caller recomputes and stores again.
func (c *Cache) Lookup(file models.SourceFile, analyzerID, version string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(file.Hash, analyzerID)
	e, ok := c.entries[k]
	if !ok || e.AnalyzerVersion != version || e.Result == nil {
		return nil, false
	}

	e.LastAccessed = time.Now().UTC()
	c.pinned[k] = true
	c.dirty[k] = true
	return e.Result, true
}

// Store records an analyzer result. In write-through mode (after a shed)
// the buffer is flushed every shedBatch stores and blobs are dropped from
// memory once written.
func (c *Cache) Store(file models.SourceFile, analyzerID, version string, result []byte) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(file.Hash, analyzerID)
	c.entries[k] = &Entry{
		Hash:            file.Hash,
		ModTime:         file.ModTime,
		Size:            file.Size,
		LastAccessed:    time.Now().UTC(),
		AnalyzerID:      analyzerID,
		AnalyzerVersion: version,
		Result:          result,
	}
	c.dirty[k] = true
	c.pinned[k] = true

	if c.shed {
		c.pending++
		if c.pending >= shedBatch {
			if err := c.flushLocked(); err != nil {
				c.report(err)
			}
		}
	}
}

// Shed switches the cache to write-through mode under memory pressure: the
// current buffer is flushed and all result blobs are dropped from memory.
// Subsequent lookups for dropped entries miss and recompute.
func (c *Cache) Shed() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.shed = true
	if err := c.flushLocked(); err != nil {
		c.report(err)
	}
}

// Flush merges the buffer with the on-disk store, applies eviction, and
// atomically replaces the store file. Returns a CacheError on failure; the
// results of the run are unaffected, only their persistence.
func (c *Cache) Flush() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	c.pending = 0
	if len(c.dirty) == 0 && !c.shed {
		return nil
	}

	// Re-read the store so entries written by a concurrent run, or blobs
	// dropped from memory by a shed, survive the merge.
	disk, err := readStore(c.path)
	if err != nil {
		disk = make(map[string]*Entry)
	}

	merged := disk
	for k, e := range c.entries {
		d, ok := merged[k]
		if !ok {
			merged[k] = e
			continue
		}
		// A buffered blob wins; a shed entry without one keeps the disk
		// blob and only refreshes the access time.
		if e.Result != nil {
			merged[k] = e
		} else if e.LastAccessed.After(d.LastAccessed) {
			d.LastAccessed = e.LastAccessed
		}
	}

	c.evict(merged)

	data, err := json.Marshal(merged)
	if err != nil {
		return &models.CacheError{Op: "encode", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		return &models.CacheError{Op: "flush", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &models.CacheError{Op: "flush", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &models.CacheError{Op: "flush", Err: err}
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return &models.CacheError{Op: "flush", Err: err}
	}

	c.dirty = make(map[string]bool)
	if c.shed {
		for _, e := range c.entries {
			e.Result = nil
		}
	}
	return nil
}

// evict applies the entry-count and byte budgets to the merged store,
// dropping least-recently-accessed entries first. Entries pinned by the
// current run are never evicted, even if the store stays over budget.
func (c *Cache) evict(merged map[string]*Entry) {
	if c.maxEnt <= 0 && c.maxByt <= 0 {
		return
	}

	var total int64
	keys := make([]string, 0, len(merged))
	for k, e := range merged {
		keys = append(keys, k)
		total += int64(len(e.Result))
	}

	over := func() bool {
		if c.maxEnt > 0 && len(merged) > c.maxEnt {
			return true
		}
		if c.maxByt > 0 && total > c.maxByt {
			return true
		}
		return false
	}
	if !over() {
		return
	}

	sort.Slice(keys, func(i, j int) bool {
		return merged[keys[i]].LastAccessed.Before(merged[keys[j]].LastAccessed)
	})
	for _, k := range keys {
		if !over() {
			return
		}
		if c.pinned[k] {
			continue
		}
		total -= int64(len(merged[k].Result))
		delete(merged, k)
	}
}

// Clear removes the on-disk store.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.dirty = make(map[string]bool)
	c.pinned = make(map[string]bool)

	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return &models.CacheError{Op: "clear", Err: err}
	}
	return nil
}

// Stats summarizes the current store contents.
type Stats struct {
	Path       string        `json:"path"`
	Entries    int           `json:"entries"`
	TotalBytes int64         `json:"total_bytes"`
	OldestAge  time.Duration `json:"oldest_age"`
	NewestAge  time.Duration `json:"newest_age"`
}

// GetStats reads the on-disk store and reports its size and age spread.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	entries, err := readStore(c.path)
	if err != nil {
		return nil, &models.CacheError{Op: "stats", Err: err}
	}

	stats := &Stats{Path: c.path, Entries: len(entries)}
	var oldest, newest time.Time
	for _, e := range entries {
		stats.TotalBytes += int64(len(e.Result))
		if oldest.IsZero() || e.LastAccessed.Before(oldest) {
			oldest = e.LastAccessed
		}
		if newest.IsZero() || e.LastAccessed.After(newest) {
			newest = e.LastAccessed
		}
	}
	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
