package serializer

import "github.com/ValentinKolb/chbridge/rpc/common"

// IRPCSerializer is the interface for all serializers of binary driver messages
type IRPCSerializer interface {
	// Serialize encodes a Message into a byte array (one frame payload)
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes a frame payload into the given Message.
	// All fields of msg are overwritten.
	Deserialize(b []byte, msg *common.Message) error
}
