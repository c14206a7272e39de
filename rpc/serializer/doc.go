// Package serializer provides message serialization for the dCheck RPC system.
// It defines a common interface and two implementations for serializing and
// deserializing messages between client and server components.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems. This is the default.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Smaller
//     payloads for large row sets, only usable between Go programs.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer, err := serializer.ByName("json")
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
