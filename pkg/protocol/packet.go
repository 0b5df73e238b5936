package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// Packet is a message with a fixed wire id.
type Packet interface {
	PacketID() uint32
}

// Encode returns the wire form of a tagged packet: varuint id then fields.
func Encode(p Packet) ([]byte, error) {
	data, err := Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal packet 0x%02X: %w", p.PacketID(), err)
	}
	return Frame(p.PacketID(), data), nil
}

// Frame prefixes an already encoded payload with its packet id.
func Frame(id uint32, payload []byte) []byte {
	out := make([]byte, 0, VarUInt32Size(id)+len(payload))
	var buf [5]byte
	n := PutVarUInt32(buf[:], id)
	out = append(out, buf[:n]...)
	return append(out, payload...)
}

// SplitFrame separates the packet id from the payload of one frame.
func SplitFrame(frame []byte) (uint32, []byte, error) {
	r := bytes.NewReader(frame)
	id, n, err := ReadVarUInt32(r)
	if err != nil {
		return 0, nil, fmt.Errorf("read packet ID: %w", err)
	}
	return id, frame[n:], nil
}

// Decode reads a frame produced by Encode into p.
func Decode(frame []byte, p Packet) error {
	id, payload, err := SplitFrame(frame)
	if err != nil {
		return err
	}
	if id != p.PacketID() {
		return fmt.Errorf("expected packet 0x%02X, got 0x%02X", p.PacketID(), id)
	}
	return Unmarshal(payload, p)
}

func WriteField(w io.Writer, tag string, val any) error {
	switch tag {
	case "varint":
		_, err := WriteVarInt32(w, val.(int32))
		return err
	case "varuint":
		_, err := WriteVarUInt32(w, val.(uint32))
		return err
	case "varlong":
		_, err := WriteVarInt64(w, val.(int64))
		return err
	case "varulong":
		_, err := WriteVarUInt64(w, val.(uint64))
		return err
	case "u8":
		_, err := w.Write([]byte{val.(uint8)})
		return err
	case "i16":
		return WriteI16LE(w, val.(int16))
	case "u32":
		return WriteU32LE(w, val.(uint32))
	case "u64":
		return WriteU64LE(w, val.(uint64))
	case "bool":
		return WriteBool(w, val.(bool))
	case "string":
		_, err := WriteString(w, val.(string))
		return err
	case "bytearray":
		_, err := WriteByteArray(w, val.([]byte))
		return err
	case "u64s":
		ids := val.([]uint64)
		if _, err := WriteVarUInt32(w, uint32(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			if err := WriteU64LE(w, id); err != nil {
				return err
			}
		}
		return nil
	case "rest":
		_, err := w.Write(val.([]byte))
		return err
	default:
		return fmt.Errorf("unknown field tag: %q", tag)
	}
}

func ReadField(r Reader, tag string) (any, error) {
	switch tag {
	case "varint":
		v, _, err := ReadVarInt32(r)
		return v, err
	case "varuint":
		v, _, err := ReadVarUInt32(r)
		return v, err
	case "varlong":
		v, _, err := ReadVarInt64(r)
		return v, err
	case "varulong":
		v, _, err := ReadVarUInt64(r)
		return v, err
	case "u8":
		return ReadU8(r)
	case "i16":
		return ReadI16LE(r)
	case "u32":
		return ReadU32LE(r)
	case "u64":
		return ReadU64LE(r)
	case "bool":
		return ReadBool(r)
	case "string":
		return ReadString(r)
	case "bytearray":
		return ReadByteArray(r)
	case "u64s":
		count, _, err := ReadVarUInt32(r)
		if err != nil {
			return nil, err
		}
		if count > 4096 {
			return nil, fmt.Errorf("too many ids: %d", count)
		}
		ids := make([]uint64, count)
		for i := range ids {
			if ids[i], err = ReadU64LE(r); err != nil {
				return nil, err
			}
		}
		return ids, nil
	case "rest":
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown field tag: %q", tag)
	}
}
