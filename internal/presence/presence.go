// Package presence tracks which participants are connected, driven by
// identification, periodic heartbeats and logout. Sessions go stale lazily:
// nothing flips offline until Sweep is run.
package presence

import (
	"maps"
	"slices"
	"time"
)

const (
	// HeartbeatInterval is how often clients are expected to send a liveness signal.
	HeartbeatInterval = 30 * time.Second
	// DefaultStaleAfter tolerates one missed heartbeat.
	DefaultStaleAfter = 2 * HeartbeatInterval
)

type Session struct {
	ParticipantID string    `json:"participantId"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastSeen      time.Time `json:"lastSeen"`
	IsOnline      bool      `json:"isOnline"`
}

// Table maps participant id to session. Methods mutate the receiver; callers
// holding a shared snapshot must Clone first.
type Table map[string]Session

func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	return maps.Clone(t)
}

// Touch records a liveness signal. ConnectedAt is set on first contact and
// preserved afterwards. wasOnline reports the status before the touch.
func (t Table) Touch(id string, now time.Time) (s Session, wasOnline bool) {
	s, ok := t[id]
	if !ok {
		s = Session{ParticipantID: id, ConnectedAt: now}
	}
	wasOnline = s.IsOnline
	s.LastSeen = now
	s.IsOnline = true
	t[id] = s
	return s, wasOnline
}

// Logout marks the session offline immediately. Sessions are never removed.
func (t Table) Logout(id string, now time.Time) (Session, bool) {
	s, ok := t[id]
	if !ok {
		return Session{}, false
	}
	s.LastSeen = now
	s.IsOnline = false
	t[id] = s
	return s, true
}

// Sweep flips every online session whose last signal is older than staleAfter
// and returns the affected ids in sorted order.
func (t Table) Sweep(now time.Time, staleAfter time.Duration) []string {
	var flipped []string
	for id, s := range t {
		if s.IsOnline && now.Sub(s.LastSeen) > staleAfter {
			s.IsOnline = false
			t[id] = s
			flipped = append(flipped, id)
		}
	}
	slices.Sort(flipped)
	return flipped
}

func (t Table) Online() []string {
	var ids []string
	for id, s := range t {
		if s.IsOnline {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
