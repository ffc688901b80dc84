package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoHouseholds() ([]Participant, []Group, []string) {
	return []Participant{
			{ID: "A", Name: "Ana", GroupID: "g1"},
			{ID: "B", Name: "Beto", GroupID: "g1"},
			{ID: "C", Name: "Cris", GroupID: "g2"},
			{ID: "D", Name: "Dani", GroupID: "g2"},
		}, []Group{
			{ID: "g1", MemberIDs: []string{"A", "B"}},
			{ID: "g2", MemberIDs: []string{"C", "D"}},
		}, []string{"A", "B", "C", "D"}
}

func TestNew_IndexesRoster(t *testing.T) {
	r, err := New(twoHouseholds())
	require.NoError(t, err)

	assert.Equal(t, 4, r.Len())
	assert.True(t, r.Has("C"))
	assert.False(t, r.Has("Z"))
	assert.Equal(t, "Cris", r.Name("C"))
	assert.Equal(t, "Z", r.Name("Z"))
	assert.True(t, r.SameGroup("C", "D"))
	assert.False(t, r.SameGroup("A", "D"))
	assert.False(t, r.SameGroup("A", "Z"))

	id, ok := r.DrawerAt(2)
	assert.True(t, ok)
	assert.Equal(t, "C", id)
	_, ok = r.DrawerAt(4)
	assert.False(t, ok)
}

func TestNew_RejectsInconsistentRosters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string)
	}{
		{
			name: "duplicate participant",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				return append(p, p[0]), g, o
			},
		},
		{
			name: "unknown group",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				p[0].GroupID = "nope"
				return p, g, o
			},
		},
		{
			name: "member not listed in its group",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				g[0].MemberIDs = []string{"B"}
				return p, g, o
			},
		},
		{
			name: "group lists a foreign member",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				g[0].MemberIDs = append(g[0].MemberIDs, "C")
				return p, g, o
			},
		},
		{
			name: "draw order too short",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				return p, g, o[:3]
			},
		},
		{
			name: "draw order repeats a drawer",
			mutate: func(p []Participant, g []Group, o []string) ([]Participant, []Group, []string) {
				o[3] = "A"
				return p, g, o
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.mutate(twoHouseholds()))
			require.Error(t, err)
		})
	}

	_, err := New(nil, nil, nil)
	require.ErrorIs(t, err, ErrEmptyRoster)
}

func TestLoad_ShippedRoster(t *testing.T) {
	r, err := Load(filepath.Join("..", "..", "configs", "roster.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 25, r.Len())

	first, ok := r.DrawerAt(0)
	require.True(t, ok)
	assert.Equal(t, "abuelo", first)
	assert.True(t, r.SameGroup("raul", "matias"))
}

func TestParse_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups: [::"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
