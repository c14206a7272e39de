package store_test

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/db/engines/memdb"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
projects:
  - id: syn100
    name: Demo
    children:
      - id: syn101
        name: raw
        kind: folder
        children:
          - id: syn123
            name: data.csv
            kind: file
      - id: syn124
        name: notes.txt
        kind: File
`

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.WorkspaceDB { return memdb.NewMemDB() })
}

func TestSeed(t *testing.T) {
	s := newStore()

	n, err := store.Seed(s, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	file, found, err := s.GetEntity("syn123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, db.Entity{ID: "syn123", Name: "data.csv", Kind: db.KindFile, ParentID: "syn101"}, file)

	children, err := s.ListChildren("syn100", "")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "syn101", children[0].ID)
	assert.Equal(t, "syn124", children[1].ID)

	// seeding twice creates nothing
	n, err = store.Seed(s, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeedErrors(t *testing.T) {
	cases := map[string]string{
		"MissingID":    "projects:\n  - name: Demo\n",
		"BadKind":      "projects:\n  - id: p\n    name: Demo\n    children:\n      - id: c\n        name: x\n        kind: dataset\n",
		"UnknownField": "projects:\n  - id: p\n    name: Demo\n    owner: bob\n",
		"FileChildren": "projects:\n  - id: p\n    name: Demo\n    children:\n      - id: f\n        name: x\n        kind: file\n        children:\n          - id: g\n            name: y\n            kind: file\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.Seed(newStore(), strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestSeedConflict(t *testing.T) {
	s := newStore()
	_, err := store.Seed(s, strings.NewReader("projects:\n  - id: p\n    name: Demo\n    children:\n      - id: x\n        name: x\n        kind: folder\n"))
	require.NoError(t, err)

	_, err = store.Seed(s, strings.NewReader("projects:\n  - id: p\n    name: Demo\n    children:\n      - id: x\n        name: x\n        kind: file\n"))
	assert.Error(t, err)
}

func TestSeedEmpty(t *testing.T) {
	n, err := store.Seed(newStore(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
