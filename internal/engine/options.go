package engine

import (
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
)

// DrawOptions is the option set offered to the current drawer.
type DrawOptions struct {
	DrawerID  string   `json:"drawerId"`
	ViableIDs []string `json:"viableGifteeIds"`
	// Fallback is set when no legal candidate keeps the draw solvable and the
	// raw legal set was offered instead.
	Fallback bool `json:"fallback,omitempty"`
}

// shuffle randomizes option order so a box's position says nothing about who
// is inside. Tests replace it with a deterministic version.
var shuffle = func(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// PrepareOptions computes the legal candidates for the current drawer that
// keep the rest of the draw solvable. It is read-only with respect to s.
// ok is false when the draw order is exhausted or the drawer has no legal
// candidate at all.
func PrepareOptions(r *roster.Roster, s State) (opts DrawOptions, ok bool) {
	drawer, found := r.DrawerAt(s.CurrentDrawerIndex)
	if !found {
		return DrawOptions{}, false
	}

	legal := LegalCandidates(r, drawer, s.AvailableGiftees)
	if len(legal) == 0 {
		return DrawOptions{}, false
	}

	var viable []string
	for _, candidate := range legal {
		rest := slices.DeleteFunc(slices.Clone(s.AvailableGiftees), func(id string) bool { return id == candidate })
		if CanComplete(r, s.CurrentDrawerIndex+1, rest) {
			viable = append(viable, candidate)
		}
	}

	opts = DrawOptions{DrawerID: drawer, ViableIDs: viable}
	if len(viable) == 0 {
		opts.ViableIDs = legal
		opts.Fallback = true
	}
	shuffle(opts.ViableIDs)
	return opts, true
}
