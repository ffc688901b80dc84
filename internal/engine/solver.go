package engine

import "github.com/DoyleJ11/santa-draw-backend/internal/roster"

// CanComplete reports whether every drawer from draw-order index next onward
// can still be given a legal giftee out of available.
//
// The search is a depth-first backtracking over the remaining assignment tree.
// Results are memoized on the set of giftees already consumed: the drawer at
// each depth is fixed by the draw order, so that set alone determines the
// subproblem. This keeps the worst case far below brute force for rosters of
// a few dozen people.
func CanComplete(r *roster.Roster, next int, available []string) bool {
	remaining := r.Len() - next
	if remaining <= 0 {
		return true
	}
	if remaining > len(available) {
		return false
	}

	s := &solver{
		r:         r,
		available: available,
		used:      make([]byte, len(available)),
		memo:      make(map[string]bool),
	}
	for i := range s.used {
		s.used[i] = '0'
	}
	return s.solve(next)
}

type solver struct {
	r         *roster.Roster
	available []string
	used      []byte
	memo      map[string]bool
}

func (s *solver) solve(idx int) bool {
	drawer, ok := s.r.DrawerAt(idx)
	if !ok {
		return true
	}

	key := string(s.used)
	if v, seen := s.memo[key]; seen {
		return v
	}

	found := false
	for i, candidate := range s.available {
		if s.used[i] == '1' || !IsValidPair(s.r, drawer, candidate) {
			continue
		}
		s.used[i] = '1'
		found = s.solve(idx + 1)
		s.used[i] = '0'
		if found {
			break
		}
	}

	s.memo[key] = found
	return found
}
