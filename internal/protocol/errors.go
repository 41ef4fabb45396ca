package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrVarIntTooLong       = errors.New("varint is too long")
	ErrVarLongTooLong      = errors.New("varlong is too long")
	ErrPacketTooLarge      = errors.New("packet size exceeds maximum allowed")
	ErrInvalidPacket       = errors.New("invalid packet structure")
	ErrInvalidUTF8         = errors.New("string is not valid utf-8")
	ErrStringTooLong       = errors.New("string exceeds maximum length")
	ErrInvalidBool         = errors.New("invalid boolean byte")
	ErrInvalidDiscriminant = errors.New("invalid enum discriminant")
	ErrUnknownPacketID     = errors.New("unknown packet id for state")
	ErrTooManyElements     = errors.New("sequence exceeds maximum element count")
	ErrNegativeLength      = errors.New("negative length prefix")
	ErrTrailingBytes       = errors.New("trailing bytes after packet body")
	ErrConnClosed          = errors.New("connection closed")
	ErrWrongState          = errors.New("operation not allowed in current connection state")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
)

// ElementError reports the first sequence element that failed to decode.
type ElementError struct {
	Index int
	Err   error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

type InvalidBoolError struct {
	Value byte
}

func (e *InvalidBoolError) Error() string {
	return fmt.Sprintf("invalid boolean byte 0x%02x", e.Value)
}

func (e *InvalidBoolError) Is(target error) bool { return target == ErrInvalidBool }

type InvalidDiscriminantError struct {
	Tag int32
}

func (e *InvalidDiscriminantError) Error() string {
	return fmt.Sprintf("invalid enum discriminant %d", e.Tag)
}

func (e *InvalidDiscriminantError) Is(target error) bool { return target == ErrInvalidDiscriminant }

type StringTooLongError struct {
	Length int
	Max    int
}

func (e *StringTooLongError) Error() string {
	return fmt.Sprintf("string length %d exceeds maximum %d", e.Length, e.Max)
}

func (e *StringTooLongError) Is(target error) bool { return target == ErrStringTooLong }

// UnknownPacketError is returned when an id is not part of the catalog of
// the current state and direction. Frame boundaries stay intact, but the
// body cannot be interpreted, so callers treat it as fatal.
type UnknownPacketError struct {
	State     State
	Direction Direction
	ID        int32
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown %s packet id 0x%02X in state %s", e.Direction, e.ID, e.State)
}

func (e *UnknownPacketError) Is(target error) bool { return target == ErrUnknownPacketID }

// PacketDecodeError carries the context of a failed packet body decode.
// Offset is the byte offset into the packet body where decoding stopped.
type PacketDecodeError struct {
	State  State
	Kind   PacketKind
	ID     int32
	Offset int64
	Err    error
}

func (e *PacketDecodeError) Error() string {
	return fmt.Sprintf("decode %s (state=%s id=0x%02X offset=%d): %v", e.Kind, e.State, e.ID, e.Offset, e.Err)
}

func (e *PacketDecodeError) Unwrap() error { return e.Err }
