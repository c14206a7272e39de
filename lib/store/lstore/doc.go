// Package lstore implements a local, single-node workspace store based on the
// store.IStore interface. It provides a thin wrapper around any db.WorkspaceDB
// implementation with automatic write index management.
//
// Whether data survives a restart depends on the engine: memdb keeps everything
// in memory, the sqlite engine persists it to a file.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that increments
//     with each write operation. It starts at the write index of the database, so
//     generated entity ids stay unique across restarts of a persistent engine.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.WorkspaceDB implementation supports the requested feature through the
//     SupportsFeature method. Unsupported operations return db.RetCUnsupportedOperation.
//
// Thread Safety:
//
//	The write index is managed with atomic operations. The etag check of a conditional
//	write is done by the engine while holding its write lock, so two concurrent
//	writers with the same etag can never both succeed.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(func() db.WorkspaceDB { return memdb.NewMemDB() })
//	project, err := s.CreateEntity(db.Entity{Name: "demo", Kind: db.KindProject})
package lstore
