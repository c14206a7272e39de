// Package common provides core data structures and utilities shared across
// the RPC layer of dCheck. It defines the message protocol, the configuration
// structures of client and server, and the logging setup.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating the request and response messages of
//     every store.IStore operation plus Login. Errors travel as return code and
//     message, so a *db.Error on the server is a *db.Error with the same code on the client.
//
//   - MessageType: Enumeration of all supported operation types.
//
//   - ServerConfig: Configuration for server nodes, including the served shards,
//     users, RAFT parameters and storage settings. Provides utilities for
//     converting to Dragonboat-specific configurations.
//
//   - ClientConfig: Configuration for client components, controlling endpoints,
//     timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
