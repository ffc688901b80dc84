package roster

import (
	"errors"
	"fmt"
	"slices"
)

var ErrEmptyRoster = errors.New("roster has no participants")

// Participant is an immutable roster identity.
type Participant struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	GroupID string `yaml:"group" json:"groupId"`
}

// Group is an exclusion unit (a "clic"): members never draw each other.
type Group struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	MemberIDs []string `yaml:"members" json:"memberIds"`
}

// Roster is the static description of a draw. It is built once and never
// mutated, so it is safe to share between goroutines.
type Roster struct {
	participants []Participant
	groups       []Group
	drawOrder    []string

	byID    map[string]int
	groupBy map[string]int
}

// New validates and indexes a roster. Every participant must belong to
// exactly one declared group and the draw order must be a permutation of
// the participant ids.
func New(participants []Participant, groups []Group, drawOrder []string) (*Roster, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyRoster
	}

	r := &Roster{
		participants: slices.Clone(participants),
		groups:       make([]Group, len(groups)),
		drawOrder:    slices.Clone(drawOrder),
		byID:         make(map[string]int, len(participants)),
		groupBy:      make(map[string]int, len(groups)),
	}

	for i, g := range groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group %d: missing id", i)
		}
		if _, dup := r.groupBy[g.ID]; dup {
			return nil, fmt.Errorf("group %q: duplicate id", g.ID)
		}
		r.groupBy[g.ID] = i
		r.groups[i] = Group{ID: g.ID, Name: g.Name, MemberIDs: slices.Clone(g.MemberIDs)}
	}

	for i, p := range participants {
		if p.ID == "" {
			return nil, fmt.Errorf("participant %d: missing id", i)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("participant %q: duplicate id", p.ID)
		}
		gi, ok := r.groupBy[p.GroupID]
		if !ok {
			return nil, fmt.Errorf("participant %q: unknown group %q", p.ID, p.GroupID)
		}
		if !slices.Contains(r.groups[gi].MemberIDs, p.ID) {
			return nil, fmt.Errorf("participant %q: not listed in group %q", p.ID, p.GroupID)
		}
		r.byID[p.ID] = i
	}

	for _, g := range r.groups {
		for _, m := range g.MemberIDs {
			pi, ok := r.byID[m]
			if !ok {
				return nil, fmt.Errorf("group %q: unknown member %q", g.ID, m)
			}
			if r.participants[pi].GroupID != g.ID {
				return nil, fmt.Errorf("group %q: member %q belongs to group %q", g.ID, m, r.participants[pi].GroupID)
			}
		}
	}

	if len(r.drawOrder) != len(r.participants) {
		return nil, fmt.Errorf("draw order has %d entries, want %d", len(r.drawOrder), len(r.participants))
	}
	seen := make(map[string]bool, len(r.drawOrder))
	for _, id := range r.drawOrder {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("draw order: unknown participant %q", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("draw order: %q appears twice", id)
		}
		seen[id] = true
	}

	return r, nil
}

// Len is the number of participants (and of draw-order slots).
func (r *Roster) Len() int { return len(r.participants) }

func (r *Roster) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Roster) Participant(id string) (Participant, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}
	return r.participants[i], true
}

// Name returns the display name, or the id itself for unknown ids.
func (r *Roster) Name(id string) string {
	if p, ok := r.Participant(id); ok {
		return p.Name
	}
	return id
}

// SameGroup reports whether a and b are both known and share a group.
func (r *Roster) SameGroup(a, b string) bool {
	pa, okA := r.Participant(a)
	pb, okB := r.Participant(b)
	return okA && okB && pa.GroupID == pb.GroupID
}

// DrawerAt returns the participant whose turn is at index i of the draw order.
func (r *Roster) DrawerAt(i int) (string, bool) {
	if i < 0 || i >= len(r.drawOrder) {
		return "", false
	}
	return r.drawOrder[i], true
}

// IDs returns participant ids in declaration order.
func (r *Roster) IDs() []string {
	ids := make([]string, len(r.participants))
	for i, p := range r.participants {
		ids[i] = p.ID
	}
	return ids
}

func (r *Roster) Participants() []Participant { return slices.Clone(r.participants) }

func (r *Roster) Groups() []Group {
	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = Group{ID: g.ID, Name: g.Name, MemberIDs: slices.Clone(g.MemberIDs)}
	}
	return out
}

func (r *Roster) DrawOrder() []string { return slices.Clone(r.drawOrder) }
