// Package store provides a high-level interface for workspace storage operations.
// It serves as an abstraction layer over the lower-level db.WorkspaceDB implementations,
// adding write index management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The operations a client needs on a remote workspace: entity
//     lookup and creation, child listing, table creation, table queries and
//     (conditional) row writes. All implementations share this interface, so the
//     checkout protocol works the same on a local store, a replicated store or an
//     RPC client.
//
//   - Error System: Every method returns a *db.Error carrying a RetCode. The code
//     survives the raft state machine and the RPC layer, which is what allows a
//     client to tell a stale etag (RetCConflict) from an unreachable server.
//
//   - DBFactory: A function type that abstracts the creation of underlying
//     db.WorkspaceDB instances.
//
//   - Seed: Loads a YAML description of projects, folders and files into a store.
//
// Implementations:
//
//   - Local Store (lstore): A non-distributed implementation that directly
//     utilizes a db.WorkspaceDB instance.
//     Available in the "github.com/ValentinKolb/dCheck/lib/store/lstore" package.
//
//   - Distributed Store (dstore): An implementation built on the Dragonboat
//     RAFT consensus library. Every write is a raft proposal, the raft log index is
//     used as write index so that all replicas generate the same ids and etags.
//     Available in the "github.com/ValentinKolb/dCheck/lib/store/dstore" package.
package store
