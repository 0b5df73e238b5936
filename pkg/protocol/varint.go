package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader is the input every decoder in this package reads from.
type Reader interface {
	io.Reader
	io.ByteReader
}

// ReadVarUInt32 reads an unsigned LEB128 value of at most 5 bytes.
func ReadVarUInt32(r io.ByteReader) (uint32, int, error) {
	var result uint32
	var numRead int

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, numRead, err
		}
		numRead++

		result |= uint32(b&0x7F) << (7 * (numRead - 1))

		if b&0x80 == 0 {
			break
		}

		if numRead >= 5 {
			return 0, numRead, fmt.Errorf("VarUInt32 too long")
		}
	}

	return result, numRead, nil
}

// WriteVarUInt32 writes value as unsigned LEB128.
func WriteVarUInt32(w io.Writer, value uint32) (int, error) {
	var buf [5]byte
	n := PutVarUInt32(buf[:], value)
	return w.Write(buf[:n])
}

// PutVarUInt32 encodes value into buf and returns the number of bytes written.
func PutVarUInt32(buf []byte, value uint32) int {
	n := 0
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if value == 0 {
			break
		}
	}
	return n
}

// VarUInt32Size returns the encoded length of value.
func VarUInt32Size(value uint32) int {
	size := 0
	for {
		size++
		value >>= 7
		if value == 0 {
			break
		}
	}
	return size
}

// ReadVarInt32 reads a zigzag-encoded signed value.
func ReadVarInt32(r io.ByteReader) (int32, int, error) {
	u, n, err := ReadVarUInt32(r)
	if err != nil {
		return 0, n, err
	}
	return int32(u>>1) ^ -int32(u&1), n, nil
}

// WriteVarInt32 writes value zigzag-encoded.
func WriteVarInt32(w io.Writer, value int32) (int, error) {
	return WriteVarUInt32(w, zigzag32(value))
}

// VarInt32Size returns the encoded length of value.
func VarInt32Size(value int32) int {
	return VarUInt32Size(zigzag32(value))
}

func zigzag32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// ReadVarUInt64 reads an unsigned LEB128 value of at most 10 bytes.
func ReadVarUInt64(r io.ByteReader) (uint64, int, error) {
	var result uint64
	var numRead int

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, numRead, err
		}
		numRead++

		result |= uint64(b&0x7F) << (7 * (numRead - 1))

		if b&0x80 == 0 {
			break
		}

		if numRead >= 10 {
			return 0, numRead, fmt.Errorf("VarUInt64 too long")
		}
	}

	return result, numRead, nil
}

// WriteVarUInt64 writes value as unsigned LEB128.
func WriteVarUInt64(w io.Writer, value uint64) (int, error) {
	var buf [10]byte
	n := 0
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if value == 0 {
			break
		}
	}
	return w.Write(buf[:n])
}

// ReadVarInt64 reads a zigzag-encoded signed 64-bit value.
func ReadVarInt64(r io.ByteReader) (int64, int, error) {
	u, n, err := ReadVarUInt64(r)
	if err != nil {
		return 0, n, err
	}
	return int64(u>>1) ^ -int64(u&1), n, nil
}

// WriteVarInt64 writes value zigzag-encoded.
func WriteVarInt64(w io.Writer, value int64) (int, error) {
	return WriteVarUInt64(w, uint64(value<<1)^uint64(value>>63))
}

func ReadString(r Reader) (string, error) {
	length, _, err := ReadVarUInt32(r)
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if length > math.MaxInt16*4 {
		return "", fmt.Errorf("string length out of range: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}
	return string(buf), nil
}

func WriteString(w io.Writer, s string) (int, error) {
	n1, err := WriteVarUInt32(w, uint32(len(s)))
	if err != nil {
		return n1, err
	}
	n2, err := io.WriteString(w, s)
	return n1 + n2, err
}

func ReadByteArray(r Reader) ([]byte, error) {
	length, _, err := ReadVarUInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read byte array length: %w", err)
	}
	if length > 1<<24 {
		return nil, fmt.Errorf("byte array too large: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read byte array data: %w", err)
	}
	return buf, nil
}

func WriteByteArray(w io.Writer, data []byte) (int, error) {
	n1, err := WriteVarUInt32(w, uint32(len(data)))
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(data)
	return n1 + n2, err
}

func ReadU8(r io.ByteReader) (uint8, error) {
	return r.ReadByte()
}

func ReadBool(r io.ByteReader) (bool, error) {
	b, err := ReadU8(r)
	return b != 0, err
}

func WriteBool(w io.Writer, v bool) error {
	b := [1]byte{0}
	if v {
		b[0] = 1
	}
	_, err := w.Write(b[:])
	return err
}

func ReadU32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func WriteU32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadU64LE(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func WriteU64LE(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadI16LE(r io.Reader) (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(buf[:])), nil
}

func WriteI16LE(w io.Writer, v int16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	_, err := w.Write(buf[:])
	return err
}
