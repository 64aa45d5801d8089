package reminders

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/fsutil"
)

// cacheEntry is one cooldown record, keyed by its reminder hash. ProjectRoot
// and AgentID are carried alongside the opaque hash so ResetCooldowns can
// match entries by scope without needing to invert the hash.
type cacheEntry struct {
	LastShown   time.Time `json:"last_shown"`
	ProjectRoot string    `json:"project_root"`
	AgentID     string    `json:"agent_id"`
}

// teachingKey identifies a (session, category) pair for the per-session
// teaching-category cap.
type teachingKey struct {
	SessionID string
	Category  Category
}

// Cache is the in-process cooldown store, persisted to a JSON file. On
// startup it is hydrated from path; Save writes it back, and the Engine
// calls Save after each evaluation and cooldown reset. Teaching-category
// counts are kept in memory only and are not written to the file.
type Cache struct {
	mu       sync.Mutex
	path     string
	entries  map[string]cacheEntry
	teaching map[teachingKey]int
	dirty    bool
}

type cacheFile struct {
	Entries map[string]cacheEntry `json:"entries"`
}

// NewCache constructs an empty Cache bound to path (not yet loaded).
func NewCache(path string) *Cache {
	return &Cache{path: path, entries: map[string]cacheEntry{}, teaching: map[teachingKey]int{}}
}

// Load hydrates the cache from its JSON file; a missing file is not an
// error - it means no reminder has ever been shown.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var cf cacheFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cf.Entries != nil {
		c.entries = cf.Entries
	}
	return nil
}

// Save persists the cache to its JSON file via an atomic rename, skipping
// the write entirely if nothing has changed since the last Save.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	cf := cacheFile{Entries: make(map[string]cacheEntry, len(c.entries))}
	for k, v := range c.entries {
		cf.Entries[k] = v
	}
	c.dirty = false
	c.mu.Unlock()

	raw, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(c.path, raw, 0o644)
}

// LastShown returns the last-shown time for hash and whether it has ever
// been recorded.
func (c *Cache) LastShown(hash string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	return e.LastShown, ok
}

// RecordShown updates the cooldown cache and the per-session teaching
// counter for a reminder that was just shown.
func (c *Cache) RecordShown(hash, projectRoot, agentID string, at time.Time, sessionID string, category Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = cacheEntry{LastShown: at, ProjectRoot: projectRoot, AgentID: agentID}
	if category == CategoryTeaching {
		c.teaching[teachingKey{SessionID: sessionID, Category: category}]++
	}
	c.dirty = true
}

// TeachingCount returns how many teaching-category reminders have been
// shown to sessionID so far.
func (c *Cache) TeachingCount(sessionID string, category Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teaching[teachingKey{SessionID: sessionID, Category: category}]
}

// ResetCooldowns clears every cached entry whose scope matches
// (projectRoot, agentID) - both empty clears everything.
func (c *Cache) ResetCooldowns(projectRoot, agentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := 0
	for hash, e := range c.entries {
		if (projectRoot == "" || e.ProjectRoot == projectRoot) && (agentID == "" || e.AgentID == agentID) {
			delete(c.entries, hash)
			cleared++
		}
	}
	for k := range c.teaching {
		delete(c.teaching, k)
	}
	c.dirty = true
	return cleared
}
