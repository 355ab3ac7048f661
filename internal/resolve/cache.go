package resolve

import (
	"sync"

	"github.com/kapu/untranslate-go/internal/domain"
)

// DescriptionCache keeps original descriptions fetched during a page
// session. Panel expansions re-request the same text over and over, so the
// first successful resolve pins it. Entries live as long as the session;
// there is no eviction.
type DescriptionCache struct {
	mu      sync.RWMutex
	entries map[domain.VideoID]string
}

func NewDescriptionCache() *DescriptionCache {
	return &DescriptionCache{
		entries: make(map[domain.VideoID]string),
	}
}

// Get returns the cached description and whether one is present. An empty
// description stored earlier still counts as present.
func (c *DescriptionCache) Get(id domain.VideoID) (string, bool) {
	if id.IsZero() {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.entries[id]
	return desc, ok
}

// Set pins a description for the rest of the session.
func (c *DescriptionCache) Set(id domain.VideoID, description string) {
	if id.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = description
}

func (c *DescriptionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
