// Package client implements the RPC client of dCheck. RPCStore implements
// store.IStore and forwards every operation to a dCheck server, so the
// check-out protocol runs unchanged against a remote workspace.
//
// Errors returned by RPCStore are always *db.Error. Errors of the server keep
// their return code (e.g. db.RetCConflict for a stale etag), transport failures
// and timeouts are reported as db.RetCUnavailable.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"http://localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	s, err := client.NewRPCStore(100, config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	if err != nil { ... }
//	if err := s.Login("alice", "secret"); err != nil { ... }
//
//	e, found, err := s.GetEntity("ent3")
//
// Every call is timed with a go-metrics timer, WriteStats prints the results.
//
// Thread Safety:
//
//	RPCStore is thread-safe and can be used concurrently from multiple goroutines.
package client
