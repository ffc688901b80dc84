// Package observer is the client side of the synchronization contract: a
// local cache that takes every authoritative message as truth, except for
// presence the observer itself has just reported.
package observer

import (
	"sync"
	"time"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/presence"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

type Cache struct {
	mu      sync.RWMutex
	seen    bool
	version int
	exists  bool
	state   engine.State

	// local heartbeats not yet reflected by the server
	local map[string]time.Time
}

func New() *Cache {
	return &Cache{local: make(map[string]time.Time)}
}

// RecordLocalHeartbeat notes a heartbeat this observer sent for id, and
// applies it to the cached state right away.
func (c *Cache) RecordLocalHeartbeat(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.local[id]; ok && prev.After(at) {
		return
	}
	c.local[id] = at
	if c.seen {
		c.state.Sessions = c.state.Sessions.Clone()
		mergeLocal(c.state.Sessions, id, at)
	}
}

// Apply overwrites the cache with msg's state. Messages older than what the
// cache already holds are ignored, as are repeated deltas of the same
// version. It reports whether the cache changed.
func (c *Cache) Apply(msg types.ServerMessage) bool {
	if msg.State == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen {
		if msg.Version < c.version {
			return false
		}
		if msg.Version == c.version && msg.Event != nil {
			return false
		}
	}

	next := msg.State.Clone()
	for id, at := range c.local {
		if !at.After(next.Sessions[id].LastSeen) {
			// the server has caught up with this heartbeat
			delete(c.local, id)
			continue
		}
		mergeLocal(next.Sessions, id, at)
	}

	c.seen = true
	c.version = msg.Version
	c.exists = msg.Exists
	c.state = next
	return true
}

func mergeLocal(t presence.Table, id string, at time.Time) {
	s, ok := t[id]
	if !ok {
		s = presence.Session{ParticipantID: id, ConnectedAt: at}
	}
	if !at.After(s.LastSeen) {
		return
	}
	s.LastSeen = at
	s.IsOnline = true
	t[id] = s
}

// State returns a copy of the cached state, its version, and whether the
// cache has been bootstrapped yet.
func (c *Cache) State() (engine.State, int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.seen {
		return engine.State{}, 0, false
	}
	return c.state.Clone(), c.version, true
}

// Exists reports whether the server had created its state as of the last
// applied message.
func (c *Cache) Exists() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exists
}
