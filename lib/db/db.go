package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplSQLite Implementation = "sqlite"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureCreateEntity Feature = 1 << iota // Support for CreateEntity operations
	FeatureGetEntity                        // Support for GetEntity operations
	FeatureListChildren                     // Support for ListChildren operations
	FeatureCreateTable                      // Support for CreateTable operations
	FeatureQueryTable                       // Support for QueryTable operations
	FeatureStoreRows                        // Support for StoreRows operations
	FeatureSave                             // Support for Save operations
	FeatureLoad                             // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureCreateEntity:
		return "CreateEntity"
	case FeatureGetEntity:
		return "GetEntity"
	case FeatureListChildren:
		return "ListChildren"
	case FeatureCreateTable:
		return "CreateTable"
	case FeatureQueryTable:
		return "QueryTable"
	case FeatureStoreRows:
		return "StoreRows"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Entities          int               `json:"entities"`
	Tables            int               `json:"tables"`
	Rows              int               `json:"rows"`
	DbType            Implementation    `json:"db_type"`
	SupportedFeatures []Feature         `json:"supported_features"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// WorkspaceDB defines the interface for workspace database implementations.
// A workspace is a hierarchy of entities; entities of kind Table additionally
// hold a schema and versioned rows.
//
// All write operations take a writeIndex that is used as a logical timestamp.
// It must be deterministic for a given write (e.g. the raft log index), since
// generated entity ids and etags are derived from it and from the table version.
type WorkspaceDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// CreateEntity stores a new entity. If e.ID is empty an id is generated from the writeIndex.
	// The parent must exist unless the entity is a project. Projects must not have a parent.
	// Tables can not be created with this method, use CreateTable instead.
	CreateEntity(e Entity, writeIndex uint64) (created Entity, err error)

	// CreateTable creates a new, empty table entity as child of the given parent.
	// Table names are not unique, creating a second table with the same name is allowed.
	CreateTable(parentID string, schema Schema, writeIndex uint64) (table Entity, err error)

	// StoreRows writes rows to a table. Rows with ID 0 are appended, all other rows
	// replace the stored row with the same id (only the columns named in set.Headers are changed).
	// Updates require a non-empty set.Etag. A non-empty etag that does not match the
	// current etag of the table rejects the whole write with RetCConflict.
	// The write is atomic: either all rows are written or none.
	// Returns the new etag of the table.
	StoreRows(tableID string, set RowSet, writeIndex uint64) (etag string, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// GetEntity retrieves an entity by its id.
	// The boolean return value indicates whether the entity was found.
	GetEntity(id string) (e Entity, found bool, err error)

	// ListChildren lists the children of an entity in creation order.
	// An empty kind lists children of all kinds.
	ListChildren(parentID string, kind Kind) (children []Entity, err error)

	// QueryTable returns all rows of a table (in schema column order) together with
	// the current etag of the table.
	QueryTable(tableID string, q Query) (set RowSet, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
