package engine

import (
	"slices"

	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
)

// DrawResult is produced once per completed turn. It travels with the commit
// and its broadcast but is not part of State.
type DrawResult struct {
	DrawerID   string `json:"drawerId"`
	GifteeID   string `json:"gifteeId"`
	GifteeName string `json:"gifteeName"`
}

// Finalize resolves a choice index against the offered options.
func Finalize(r *roster.Roster, s State, choiceIndex int) (DrawResult, bool) {
	if choiceIndex < 0 || choiceIndex >= len(s.CurrentOptions) {
		return DrawResult{}, false
	}
	drawer, ok := r.DrawerAt(s.CurrentDrawerIndex)
	if !ok {
		return DrawResult{}, false
	}
	giftee := s.CurrentOptions[choiceIndex]
	return DrawResult{DrawerID: drawer, GifteeID: giftee, GifteeName: r.Name(giftee)}, true
}

// Commit records res and advances to the next drawer, or completes the game
// when the draw order is exhausted. The turn is always left unlocked.
func Commit(r *roster.Roster, s State, res DrawResult) State {
	next := s.Clone()
	next.Assignments[res.DrawerID] = res.GifteeID
	next.AvailableGiftees = slices.DeleteFunc(next.AvailableGiftees, func(id string) bool { return id == res.GifteeID })
	return advance(r, next)
}

// advance moves the cursor one slot and resets the per-turn fields. s must
// already be a private copy.
func advance(r *roster.Roster, s State) State {
	s.CurrentDrawerIndex++
	s.CurrentOptions = nil
	s.SelectedIndex = nil
	s.TurnLocked = false
	if s.CurrentDrawerIndex >= r.Len() {
		s.IsComplete = true
		s.Lifecycle = LifecycleCompleted
		s.SelectionPhase = PhaseComplete
	} else {
		s.SelectionPhase = PhaseWaiting
	}
	return s
}
