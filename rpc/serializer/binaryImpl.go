package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasDatabase byte = 1 << 0
	hasUser     byte = 1 << 1
	hasPassword byte = 1 << 2
	hasQuery    byte = 1 << 3
	hasTarget   byte = 1 << 4
	hasData     byte = 1 << 5
	hasOk       byte = 1 << 6
	hasErr      byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, 2, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Handle string fields (length prefixed)
	stringFields := []struct {
		flag  byte
		value string
	}{
		{hasDatabase, msg.Database},
		{hasUser, msg.User},
		{hasPassword, msg.Password},
		{hasQuery, msg.Query},
	}
	for _, f := range stringFields {
		if f.value != "" {
			flags |= f.flag
			result = appendBytes(result, []byte(f.value))
		}
	}

	// Handle Target
	if msg.Target > 0 {
		flags |= hasTarget
		result = binary.BigEndian.AppendUint64(result, msg.Target)
	}

	// Handle Data (an empty but non-nil slice is preserved)
	if msg.Data != nil {
		flags |= hasData
		result = appendBytes(result, msg.Data)
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	pos := 2

	// Read string fields in serialization order
	stringFields := []struct {
		flag  byte
		name  string
		value *string
	}{
		{hasDatabase, "database", &msg.Database},
		{hasUser, "user", &msg.User},
		{hasPassword, "password", &msg.Password},
		{hasQuery, "query", &msg.Query},
	}
	for _, f := range stringFields {
		if flags&f.flag == 0 {
			continue
		}
		raw, next, err := readBytes(data, pos, f.name)
		if err != nil {
			return err
		}
		*f.value = string(raw)
		pos = next
	}

	// Read Target if present
	if flags&hasTarget != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for target")
		}
		msg.Target = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	// Read Data if present - create an empty slice (not nil) if length is 0
	if flags&hasData != 0 {
		raw, next, err := readBytes(data, pos, "data")
		if err != nil {
			return err
		}
		msg.Data = make([]byte, len(raw))
		copy(msg.Data, raw)
		pos = next
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[pos] != 0
		pos += 1
	}

	// Read Err if present
	if flags&hasErr != 0 {
		raw, _, err := readBytes(data, pos, "error")
		if err != nil {
			return err
		}
		msg.Err = string(raw)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// appendBytes appends a 4 byte length prefix followed by the data
func appendBytes(dst []byte, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}

// readBytes reads a length prefixed byte sequence starting at pos.
// It returns the data (aliasing the input) and the position after it.
func readBytes(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", name)
	}
	length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if pos+length > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s data", name)
	}
	return data[pos : pos+length], pos + length, nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	for _, s := range []string{msg.Database, msg.User, msg.Password, msg.Query, msg.Err} {
		if s != "" {
			size += 4 + len(s) // 4 bytes for length + string
		}
	}
	if msg.Target > 0 {
		size += 8 // uint64
	}
	if msg.Data != nil {
		size += 4 + len(msg.Data) // 4 bytes for length + data bytes
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}

	return size
}
