// Package dstore implements a distributed, fault-tolerant workspace store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the store.IStore interface that can operate across multiple nodes.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.IStore interface and communicates with
//     the RAFT cluster. It serializes operations into commands, sends them to the
//     consensus layer, and processes responses.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that processes
//     commands and queries on each node. The state machine contains the actual
//     db.WorkspaceDB instance and applies operations to it.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic.
//
// Write Operations:
//
//	All write operations (CreateEntity, CreateTable, StoreRows) follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. Once committed, the command is executed on the state machine of each node
//	4. The result code and a JSON result (entity or etag) are returned to the client
//
//	The write index for all operations is the RAFT log index. Generated entity ids
//	and etags are derived from it, so all replicas agree on them. The etag check of
//	a conditional StoreRows runs inside the state machine, after ordering by RAFT,
//	so at most one of several writers holding the same etag succeeds.
//
// Read Operations:
//
//   - Linearizable Reads: GetEntity, ListChildren and QueryTable use SyncRead, so a
//     query always observes every committed write. The etag returned by QueryTable
//     is therefore never older than a write the caller already saw acknowledged.
//
//   - Stale Reads: GetDBInfo uses StaleRead.
//
// Error Handling and Retries:
//
//   - System Busy / Shard Not Ready: the operation is retried after a short delay,
//     up to 5 attempts.
//
//   - Timeouts: If consensus cannot be reached within the timeout, the operation fails
//     with db.RetCUnavailable.
//
//   - Database errors (NotFound, Conflict, ...) are carried in the result code of the
//     raft entry and returned as *db.Error with the same code.
//
// Snapshotting and Recovery:
//
//	The state machine uses the Save and Load methods of the database for fuzzy snapshots.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	dbFactory := func() db.WorkspaceDB { return memdb.NewMemDB() }
//	err = nh.StartConcurrentReplica(members, false, dstore.CreateStateMachineFactory(dbFactory), shardConfig)
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
