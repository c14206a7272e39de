// Package transport defines the interfaces for RPC communication between the
// dCheck client and the workspace server. It provides a common contract that
// all transport implementations must fulfill.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// The only implementation is HTTP (subpackage http).
package transport
