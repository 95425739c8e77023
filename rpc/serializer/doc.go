// Package serializer provides message serialization for the binary driver.
// It defines a common interface and the implementation used on the wire for
// converting common.Message values to and from byte arrays.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format optimized for speed and space
//     efficiency. Uses a flag-based approach to encode only present fields.
//     This is the format spoken on the wire by the binary driver.
//
// Thread Safety:
//
//	The serializer is stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
