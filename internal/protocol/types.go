package protocol

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultStringMax is the character cap used for strings without a
	// narrower protocol limit.
	DefaultStringMax = 32767

	// MaxPrealloc bounds the capacity reserved up front for a sequence, so a
	// hostile count prefix cannot force a large allocation before any element
	// has been read.
	MaxPrealloc = 4096

	// DefaultMaxElements is the element cap for sequences that have no
	// narrower limit.
	DefaultMaxElements = 1 << 20
)

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func WriteUint8(w io.Writer, value uint8) error {
	_, err := w.Write([]byte{value})
	return err
}

func ReadInt8(r io.Reader) (int8, error) {
	b, err := ReadUint8(r)
	return int8(b), err
}

func WriteInt8(w io.Writer, value int8) error {
	return WriteUint8(w, uint8(value))
}

func ReadUnsignedShort(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func WriteUnsignedShort(w io.Writer, value uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	_, err := w.Write(buf[:])
	return err
}

func ReadInt16(r io.Reader) (int16, error) {
	v, err := ReadUnsignedShort(r)
	return int16(v), err
}

func WriteInt16(w io.Writer, value int16) error {
	return WriteUnsignedShort(w, uint16(value))
}

func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func WriteInt32(w io.Writer, value int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(value))
	_, err := w.Write(buf[:])
	return err
}

func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func WriteInt64(w io.Writer, value int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(value))
	_, err := w.Write(buf[:])
	return err
}

func ReadFloat(r io.Reader) (float32, error) {
	v, err := ReadInt32(r)
	return math.Float32frombits(uint32(v)), err
}

func WriteFloat(w io.Writer, value float32) error {
	return WriteInt32(w, int32(math.Float32bits(value)))
}

func ReadDouble(r io.Reader) (float64, error) {
	v, err := ReadInt64(r)
	return math.Float64frombits(uint64(v)), err
}

func WriteDouble(w io.Writer, value float64) error {
	return WriteInt64(w, int64(math.Float64bits(value)))
}

// ReadBool accepts only 0x00 and 0x01.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &InvalidBoolError{Value: b}
	}
}

func WriteBool(w io.Writer, value bool) error {
	var b byte
	if value {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func ReadString(r io.Reader) (string, error) {
	return ReadStringMax(r, DefaultStringMax)
}

// ReadStringMax reads a VarInt byte-length prefixed UTF-8 string holding at
// most max characters. The prefix is checked against the worst case of three
// bytes per character before any allocation.
func ReadStringMax(r io.Reader, max int) (string, error) {
	length, err := ReadVarint(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", ErrNegativeLength
	}
	if int(length) > max*3 {
		return "", &StringTooLongError{Length: int(length), Max: max}
	}
	strBytes := make([]byte, length)
	if err := readFull(r, strBytes); err != nil {
		return "", err
	}
	if !utf8.Valid(strBytes) {
		return "", ErrInvalidUTF8
	}
	if n := utf8.RuneCount(strBytes); n > max {
		return "", &StringTooLongError{Length: n, Max: max}
	}
	return string(strBytes), nil
}

func WriteString(w io.Writer, s string) error {
	if err := WriteVarint(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadByteArray reads a VarInt length prefixed byte slice of at most max bytes.
func ReadByteArray(r io.Reader, max int) ([]byte, error) {
	length, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, ErrNegativeLength
	}
	if int(length) > max {
		return nil, fmt.Errorf("%w: byte array of %d exceeds %d", ErrPacketTooLarge, length, max)
	}
	data := make([]byte, length)
	if err := readFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func WriteByteArray(w io.Writer, data []byte) error {
	if err := WriteVarint(w, int32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadRemaining consumes the rest of the packet body.
func ReadRemaining(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// ReadLongArray reads a VarInt count followed by that many big-endian int64.
func ReadLongArray(r io.Reader, max int) ([]int64, error) {
	count, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, ErrNegativeLength
	}
	if int(count) > max {
		return nil, fmt.Errorf("%w: %d longs, max %d", ErrTooManyElements, count, max)
	}
	return ReadLongs(r, int(count))
}

// ReadLongs reads exactly n big-endian int64 values without a prefix.
func ReadLongs(r io.Reader, n int) ([]int64, error) {
	out := make([]int64, 0, min(n, MaxPrealloc))
	var buf [8]byte
	for i := 0; i < n; i++ {
		if err := readFull(r, buf[:]); err != nil {
			return nil, err
		}
		out = append(out, int64(binary.BigEndian.Uint64(buf[:])))
	}
	return out, nil
}

func WriteLongArray(w io.Writer, values []int64) error {
	if err := WriteVarint(w, int32(len(values))); err != nil {
		return err
	}
	return WriteLongs(w, values)
}

func WriteLongs(w io.Writer, values []int64) error {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[i*8:], uint64(v))
	}
	_, err := w.Write(buf)
	return err
}

func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	if err := readFull(r, id[:]); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func WriteUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

// ReadOptional reads a presence flag and, when set, one value.
func ReadOptional[T any](r io.Reader, read func(io.Reader) (T, error)) (*T, error) {
	present, err := ReadBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := read(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func WriteOptional[T any](w io.Writer, v *T, write func(io.Writer, T) error) error {
	if err := WriteBool(w, v != nil); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return write(w, *v)
}

// ReadSequence reads a VarInt count and then count elements. The first
// failing element is reported as an *ElementError carrying its index.
func ReadSequence[T any](r io.Reader, max int, read func(io.Reader) (T, error)) ([]T, error) {
	count, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, ErrNegativeLength
	}
	if int(count) > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyElements, count, max)
	}
	out := make([]T, 0, min(int(count), MaxPrealloc))
	for i := 0; i < int(count); i++ {
		v, err := read(r)
		if err != nil {
			return nil, &ElementError{Index: i, Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

func WriteSequence[T any](w io.Writer, items []T, write func(io.Writer, T) error) error {
	if err := WriteVarint(w, int32(len(items))); err != nil {
		return err
	}
	for i, item := range items {
		if err := write(w, item); err != nil {
			return &ElementError{Index: i, Err: err}
		}
	}
	return nil
}

// ReadEnum reads a VarInt discriminant and rejects tags outside valid.
func ReadEnum(r io.Reader, valid func(int32) bool) (int32, error) {
	tag, err := ReadVarint(r)
	if err != nil {
		return 0, err
	}
	if !valid(tag) {
		return 0, &InvalidDiscriminantError{Tag: tag}
	}
	return tag, nil
}

// PackFlags packs booleans into one byte, first flag in bit 0.
func PackFlags(flags ...bool) byte {
	var b byte
	for i, f := range flags {
		if f {
			b |= 1 << i
		}
	}
	return b
}

// UnpackFlags is the inverse of PackFlags. Bits beyond len(dst) are ignored.
func UnpackFlags(b byte, dst ...*bool) {
	for i, d := range dst {
		*d = b&(1<<i) != 0
	}
}

// GenerateOfflineUUID generates a version-3 UUID for offline-mode players.
// Algorithm: MD5("OfflinePlayer:" + username), then set version=3 and variant=RFC4122.
func GenerateOfflineUUID(username string) uuid.UUID {
	hash := md5.Sum([]byte("OfflinePlayer:" + username))
	hash[6] = (hash[6] & 0x0F) | 0x30
	hash[8] = (hash[8] & 0x3F) | 0x80
	return uuid.UUID(hash)
}
