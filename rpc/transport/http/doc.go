// Package http implements the HTTP transport for RPC communication between
// dCheck clients and the workspace server.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are sent as
//     POST /{shardId} with the serialized message as body. Endpoints are used
//     round-robin, a failed read is retried on the next endpoint. Writes are
//     sent once, a write whose response got lost may still have been applied.
//     Every request is bounded by the configured timeout.
//
//   - httpServerTransport: Implements IRPCServerTransport and http.Handler. It
//     routes POST /{shardId} to the registered handler and serves the server
//     metrics in Prometheus text format on GET /metrics.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
