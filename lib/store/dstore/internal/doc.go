// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (CreateEntity, CreateTable, StoreRows)
//     that modify the state of the workspace. Commands are serialized and proposed to
//     the RAFT cluster, executed on the state machine, and produce a CommandResult.
//
//   - Query System: Defines read operations (GetEntity, ListChildren, QueryTable,
//     GetDBInfo). Queries are executed locally on the state machine and therefore do
//     not require serialization.
//
// Command Format:
//
//   - 1 byte: Command type
//   - 4 bytes: Target length (uint32, big endian)
//   - N bytes: Target id (parent id for CreateTable, table id for StoreRows)
//   - M bytes: JSON encoded CommandBody (entity, schema or row set)
//
// Rows are structured data with nullable cells, so the body is JSON rather than
// a fixed binary layout. The body must be present for every command type.
//
// Thread Safety:
//
// The types in this package are not thread-safe and should not be shared
// across goroutines without external synchronization. The RAFT protocol ensures
// sequential processing of commands on the state machine.
package internal
