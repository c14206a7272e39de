package transport

import (
	"context"

	"github.com/ValentinKolb/dCheck/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until the transport is shut down.
	// After Shutdown, Listen returns nil.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting requests and waits for running requests to finish
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// Errors are transport errors (connection refused, timeout, bad status).
	// Only idempotent requests are retried, all others are sent exactly once.
	Send(shardId uint64, req []byte, idempotent bool) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
