// Package rpc provides the remote access layer of dCheck. The check-out
// protocol talks to a workspace store.IStore, which usually lives on a server
// shared by all users.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions (HTTP).
//
//   - serializer: Message serialization (JSON, GOB) for converting between
//     Message objects and byte arrays.
//
//   - client: RPC client implementing store.IStore, with login.
//
//   - server: RPC server that authenticates requests and dispatches them to
//     the store of a shard.
package rpc
