// Package assets loads and caches glTF scene blueprints.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
)

// ErrNotFound is returned when no search root holds the requested file.
var ErrNotFound = errors.New("asset not found")

// Manager resolves blueprint paths against search roots.
// Roots are searched in reverse order (last added = highest priority).
type Manager struct {
	roots []string
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddRoot adds a directory to search.
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()

	return nil
}

// Load returns the blueprint for a .gltf or .glb file. Relative paths are
// resolved against the roots; absolute paths are opened directly.
func (m *Manager) Load(path string) (*Blueprint, error) {
	// Check cache first
	if bp, ok := m.cache.Get(path); ok {
		return bp, nil
	}

	full, err := m.resolve(path)
	if err != nil {
		return nil, err
	}

	doc, err := gltf.Open(full)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", full, err)
	}
	bp, err := FromDocument(filepath.Base(path), doc)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", full, err)
	}

	m.cache.Set(path, bp)
	logger.Named("assets").Debug("blueprint loaded",
		zap.String("path", full),
		zap.Int("nodes", len(bp.Nodes)))
	return bp, nil
}

// Stats returns cache hits and misses.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops the roots and the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.cache.Clear()
}

func (m *Manager) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return path, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		full := filepath.Join(m.roots[i], path)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Cache is an in-memory blueprint cache.
type Cache struct {
	data map[string]*Blueprint
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Blueprint),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Blueprint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bp, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return bp, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, bp *Blueprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = bp
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*Blueprint)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
