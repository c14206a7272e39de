package internal

import "github.com/ValentinKolb/dCheck/lib/db"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGetEntity    QueryType = iota // Retrieve an entity by id.
	QueryTListChildren                  // List the children of an entity.
	QueryTQueryTable                    // Read all rows of a table.
	QueryTGetDBInfo                     // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGetEntity:
		return "GetEntity"
	case QueryTListChildren:
		return "ListChildren"
	case QueryTQueryTable:
		return "QueryTable"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type  QueryType // The type of Query to perform.
	ID    string    // Entity, parent or table id (empty for GetDBInfo).
	Kind  db.Kind   // Kind filter for ListChildren.
	Order db.Query  // Ordering for QueryTable.
}

// EntityResult is the result of a QueryTGetEntity operation.
// All other query results are predefined structs ([]db.Entity, db.RowSet, db.DatabaseInfo).
type EntityResult struct {
	Found  bool
	Entity db.Entity
}
