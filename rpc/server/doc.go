// Package server implements the RPC server of dCheck. A server holds one or
// more shards, every shard is an independent workspace (a store.IStore).
//
// Key Components:
//
//   - RPCServer: decodes requests, checks the session token, dispatches to the
//     adapter of the addressed shard and records request metrics
//     (dcheck_requests_total, dcheck_request_duration_seconds,
//     dcheck_request_errors_total).
//
//   - IRPCServerAdapter / NewIStoreServerAdapter: translates RPC messages into
//     store.IStore calls.
//
//   - authenticator: Login checks user name and password against the bcrypt
//     hashes of the config and hands out a session token. Sessions are kept in
//     memory and expire after SessionTTLSeconds without requests. Without
//     configured users every login is accepted (for local setups).
//
// Shard types:
//
//   - ShardTypeLocalMemory: in-memory workspace, lost on restart.
//   - ShardTypeLocalSQLite: workspace in a sqlite file below DataDir.
//   - ShardTypeRemote: workspace replicated with Raft (dragonboat). All RAFT
//     parameters (RTTMillisecond, SnapshotEntries, CompactionOverhead, DataDir,
//     ReplicaID, ClusterMembers) must be configured.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards:   []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalSQLite}},
//	  DataDir:  "data",
//	  Endpoint: "0.0.0.0:8080",
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server handles concurrent requests. Serve and Shutdown must be called only once.
package server
