package store

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/dCheck/lib/db"
	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Workspace Seeding
// --------------------------------------------------------------------------

// SeedNode is an entity in a seed file together with its children
type SeedNode struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Kind     string     `yaml:"kind,omitempty"`
	Children []SeedNode `yaml:"children,omitempty"`
}

// SeedFile is the format of a workspace seed file:
//
//	projects:
//	  - id: syn100
//	    name: Demo
//	    children:
//	      - id: syn123
//	        name: data.csv
//	        kind: file
type SeedFile struct {
	Projects []SeedNode `yaml:"projects"`
}

// Seed creates the entities of a YAML seed file in the store.
// Entities that already exist (same id) are skipped, so seeding is idempotent.
// Returns the number of created entities.
func Seed(s IStore, r io.Reader) (int, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return 0, fmt.Errorf("invalid seed file: %w", err)
	}

	created := 0
	for _, p := range file.Projects {
		if p.Kind == "" {
			p.Kind = string(db.KindProject)
		}
		n, err := seedNode(s, p, "")
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func seedNode(s IStore, node SeedNode, parentID string) (int, error) {
	if node.ID == "" {
		return 0, fmt.Errorf("seed entity %q has no id", node.Name)
	}
	kind, err := db.ParseKind(node.Kind)
	if err != nil {
		return 0, fmt.Errorf("seed entity %s: %w", node.ID, err)
	}

	created := 0
	existing, found, err := s.GetEntity(node.ID)
	if err != nil {
		return 0, err
	}
	switch {
	case !found:
		if _, err := s.CreateEntity(db.Entity{ID: node.ID, Name: node.Name, Kind: kind, ParentID: parentID}); err != nil {
			return 0, fmt.Errorf("seed entity %s: %w", node.ID, err)
		}
		created++
	case existing.Kind != kind || existing.ParentID != parentID:
		return 0, fmt.Errorf("seed entity %s conflicts with existing %s", node.ID, existing)
	}

	for _, child := range node.Children {
		n, err := seedNode(s, child, node.ID)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}
