package store

import (
	"github.com/ValentinKolb/dCheck/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.WorkspaceDB

// IStore is the generic interface for interacting with a workspace store.
// All methods return a *db.Error on failure so that callers can inspect the
// return code (NotFound, Conflict, ...) no matter which implementation or
// transport is in between.
type IStore interface {
	// CreateEntity creates a project, folder or file. An empty e.ID lets the store generate an id.
	CreateEntity(e db.Entity) (created db.Entity, err error)
	// GetEntity retrieves an entity by id. The boolean return value indicates whether the entity was found.
	GetEntity(id string) (e db.Entity, found bool, err error)
	// ListChildren lists the children of an entity in creation order, optionally filtered by kind.
	ListChildren(parentID string, kind db.Kind) (children []db.Entity, err error)
	// CreateTable creates a new, empty table below the given project or folder.
	CreateTable(parentID string, schema db.Schema) (table db.Entity, err error)
	// QueryTable returns all rows of a table and its current etag.
	QueryTable(tableID string, q db.Query) (set db.RowSet, err error)
	// StoreRows appends or updates rows. A non-empty set.Etag makes the write conditional,
	// a stale etag is rejected with db.RetCConflict. Returns the new etag of the table.
	StoreRows(tableID string, set db.RowSet) (etag string, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// Unsupported returns the error for an operation the underlying database does not support
func Unsupported(op string) *db.Error {
	return db.Errorf(db.RetCUnsupportedOperation, "%s operation is not supported", op)
}
