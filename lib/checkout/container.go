package checkout

import (
	"fmt"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
)

// Lockable reports whether entities of kind k can be checked out
func Lockable(k db.Kind) bool {
	return k == db.KindFolder || k == db.KindFile
}

// LoadEntity loads an entity. A missing entity is reported as ErrNotFound.
func LoadEntity(s store.IStore, id string) (db.Entity, error) {
	e, found, err := s.GetEntity(id)
	if err != nil {
		return db.Entity{}, classify("load entity "+id, err)
	}
	if !found {
		return db.Entity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// ResolveContainer walks up the hierarchy of e until it reaches a project.
// The walk stops with ErrNoContainer at a root that is not a project or after
// maxDepth parent lookups.
func ResolveContainer(s store.IStore, e db.Entity, maxDepth int) (db.Entity, error) {
	current := e
	for depth := 0; ; depth++ {
		if current.Kind == db.KindProject {
			return current, nil
		}
		if current.ParentID == "" {
			return db.Entity{}, fmt.Errorf("%w: %s has no parent", ErrNoContainer, current)
		}
		if depth >= maxDepth {
			return db.Entity{}, fmt.Errorf("%w: %s is nested deeper than %d levels", ErrNoContainer, e, maxDepth)
		}
		parent, err := LoadEntity(s, current.ParentID)
		if err != nil {
			return db.Entity{}, err
		}
		current = parent
	}
}
