// Package autoheal implements the AutoHeal controller's in-memory rule
// cache, its /webhook handler, and its five action kinds, per spec.md §4.5.
package autoheal

import (
	"sync"
	"time"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

// Entry is the cache's materialized view of one AutoHealRule, keyed by
// TriggerName. Because an inbound alert carries only an alertname (spec.md
// §6.2) and no namespace, the cache is keyed by TriggerName alone; a second
// rule registering the same TriggerName in a different namespace replaces
// the first rule's cache entry (see the internal/autoheal section of
// DESIGN.md: cross-namespace trigger collisions resolve last-write-wins).
type Entry struct {
	Namespace         string
	Name              string
	Cooldown          time.Duration
	Actions           []phv1alpha1.Action
	LastExecutionTime time.Time
}

// Cache is the shared, concurrency-safe map between the AutoHealRule
// reconciler (writer via Put/Delete) and the webhook handler (reader via
// Get, writer of LastExecutionTime via Touch). Guarded by a readers-writer
// lock held for the shortest possible span, per spec.md §5.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache builds an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Put inserts or replaces the entry for triggerName.
func (c *Cache) Put(triggerName string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[triggerName] = entry
}

// Delete removes triggerName's entry, if any.
func (c *Cache) Delete(triggerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, triggerName)
}

// Get returns a copy of triggerName's entry.
func (c *Cache) Get(triggerName string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[triggerName]
	return e, ok
}

// Touch records t as the entry's new LastExecutionTime, used after a
// matched alert clears the cooldown check and begins processing.
func (c *Cache) Touch(triggerName string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[triggerName]
	if !ok {
		return
	}
	e.LastExecutionTime = t
	c.entries[triggerName] = e
}
