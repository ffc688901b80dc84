package engine

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/santa-draw-backend/internal/presence"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
)

// Phase is the per-turn sub-state.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelecting Phase = "selecting"
	PhaseRevealing Phase = "revealing"
	PhaseComplete  Phase = "complete"
)

// Lifecycle is the coarse game state gating whether turns may happen.
type Lifecycle string

const (
	LifecycleNotStarted Lifecycle = "not_started"
	LifecycleInProgress Lifecycle = "in_progress"
	LifecycleCompleted  Lifecycle = "completed"
)

// State is the authoritative game record. Apply never mutates its input; it
// works on a Clone.
type State struct {
	CurrentDrawerIndex int               `json:"currentDrawerIndex"`
	Assignments        map[string]string `json:"assignments"`
	AvailableGiftees   []string          `json:"availableGiftees"`
	SelectionPhase     Phase             `json:"selectionPhase"`
	Lifecycle          Lifecycle         `json:"gameLifecycle"`
	CurrentOptions     []string          `json:"currentOptions"`
	SelectedIndex      *int              `json:"selectedIndex"`
	TurnLocked         bool              `json:"turnLocked"`
	Sessions           presence.Table    `json:"activePlayerSessions"`
	AdminID            string            `json:"adminId,omitempty"`
	IsComplete         bool              `json:"isComplete"`
}

// NewState returns a fresh, not-yet-started game for r.
func NewState(r *roster.Roster) State {
	return State{
		CurrentDrawerIndex: 0,
		Assignments:        map[string]string{},
		AvailableGiftees:   r.IDs(),
		SelectionPhase:     PhaseWaiting,
		Lifecycle:          LifecycleNotStarted,
		CurrentOptions:     nil,
		SelectedIndex:      nil,
		TurnLocked:         false,
		Sessions:           presence.Table{},
	}
}

// Clone returns a deep copy safe to mutate.
func (s State) Clone() State {
	c := s
	c.Assignments = maps.Clone(s.Assignments)
	if c.Assignments == nil {
		c.Assignments = map[string]string{}
	}
	c.AvailableGiftees = slices.Clone(s.AvailableGiftees)
	c.CurrentOptions = slices.Clone(s.CurrentOptions)
	if s.SelectedIndex != nil {
		i := *s.SelectedIndex
		c.SelectedIndex = &i
	}
	c.Sessions = s.Sessions.Clone()
	return c
}

// CurrentDrawer returns whose turn it is, if anyone's.
func (s State) CurrentDrawer(r *roster.Roster) (string, bool) {
	return r.DrawerAt(s.CurrentDrawerIndex)
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
