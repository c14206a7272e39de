package entity_test

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dCheck/cmd/entity"
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/db/engines/memdb"
	"github.com/ValentinKolb/dCheck/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	s := lstore.NewLocalStore(func() db.WorkspaceDB { return memdb.NewMemDB() })

	project, err := entity.Create(s, db.KindProject, "demo", "")
	require.NoError(t, err)
	assert.Equal(t, db.KindProject, project.Kind)

	folder, err := entity.Create(s, db.KindFolder, "docs", project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, folder.ParentID)

	tests := []struct {
		name   string
		kind   db.Kind
		parent string
	}{
		{"table", db.KindTable, project.ID},
		{"project with parent", db.KindProject, project.ID},
		{"folder without parent", db.KindFolder, ""},
		{"file without parent", db.KindFile, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := entity.Create(s, tt.kind, "x", tt.parent)
			assert.Error(t, err)
		})
	}

	children, err := s.ListChildren(project.ID, "")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestPrintEntities(t *testing.T) {
	var out bytes.Buffer
	err := entity.PrintEntities(&out, []db.Entity{
		{ID: "ent1", Name: "demo", Kind: db.KindProject},
		{ID: "ent2", Name: "docs", Kind: db.KindFolder, ParentID: "ent1"},
	})
	require.NoError(t, err)
	assert.Equal(t, ""+
		"ID    KIND     NAME  PARENT\n"+
		"ent1  Project  demo  -\n"+
		"ent2  Folder   docs  ent1\n", out.String())
}
