package engine

import (
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
)

// IsValidPair reports whether drawer may give to candidate: never to
// themselves, never to someone in their own group.
func IsValidPair(r *roster.Roster, drawerID, candidateID string) bool {
	if drawerID == candidateID {
		return false
	}
	return !r.SameGroup(drawerID, candidateID)
}

// LegalCandidates filters available down to the giftees drawer may receive,
// preserving order.
func LegalCandidates(r *roster.Roster, drawerID string, available []string) []string {
	var out []string
	for _, id := range available {
		if IsValidPair(r, drawerID, id) {
			out = append(out, id)
		}
	}
	return out
}
