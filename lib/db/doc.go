// Package db provides a standardized interface for workspace database implementations.
// A workspace is a hierarchy of entities (projects, folders, files and tables).
// Table entities additionally hold a fixed schema and a versioned list of rows.
//
// The package focuses on:
//   - A unified interface (WorkspaceDB) for entity and table operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Shared validation, ordering and etag helpers, so that every implementation
//     behaves exactly the same
//
// Key Components:
//
//   - WorkspaceDB Interface: The core interface that all database implementations must satisfy.
//     It provides entity operations (CreateEntity, GetEntity, ListChildren), table
//     operations (CreateTable, QueryTable, StoreRows), and persistence operations (Save, Load).
//
//   - Error System: *Error carries a RetCode (NotFound, Conflict, ...) that is preserved
//     across the store, the raft state machine and the RPC layer.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports entity, table and row counts.
//
// Versioning:
//
//	Every table carries a version that is incremented on each successful StoreRows.
//	The etag of a table is a name based UUID of (table id, version). A query returns the
//	etag, a write that passes a non-empty etag is only applied if the etag is still current.
//	This is the only concurrency primitive the workspace offers to its clients.
//
// Note on write indices:
//
//	All write operations take a write-index. It is used as a logical timestamp and
//	to derive generated entity ids. The replicated store passes the raft log index, the
//	local store a monotonically increasing counter.
package db
