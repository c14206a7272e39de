// Package memdb implements an in-memory workspace database (db.WorkspaceDB).
//
// All state is kept in plain maps guarded by a single RWMutex. Reads take the
// read lock and return deep copies, writes take the write lock, so a
// conditional StoreRows (etag check + apply) is atomic.
//
// Save and Load use encoding/gob; this is what the replicated store uses for
// raft snapshots.
package memdb
