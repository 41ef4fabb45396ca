package protocol

import (
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/google/uuid"
)

// Field binds one wire field to a Go value. A packet describes its layout
// once as an ordered Fields list; the same list drives decode and encode.
type Field struct {
	Name   string
	Decode func(r io.Reader) error
	Encode func(w io.Writer) error
}

type Fields []Field

func (fs Fields) Decode(r io.Reader) error {
	for _, f := range fs {
		if err := f.Decode(r); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func (fs Fields) Encode(w io.Writer) error {
	for _, f := range fs {
		if err := f.Encode(w); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// Schema is implemented by packets and by composite values nested in them.
type Schema interface {
	Fields(v ProtocolVersion) Fields
}

func value[T any](name string, p *T, read func(io.Reader) (T, error), write func(io.Writer, T) error) Field {
	return Field{
		Name: name,
		Decode: func(r io.Reader) error {
			v, err := read(r)
			if err != nil {
				return err
			}
			*p = v
			return nil
		},
		Encode: func(w io.Writer) error { return write(w, *p) },
	}
}

func VarIntField(name string, p *int32) Field {
	return value(name, p, ReadVarint, WriteVarint)
}

func VarLongField(name string, p *int64) Field {
	return value(name, p, ReadVarLong, WriteVarLong)
}

func BoolField(name string, p *bool) Field {
	return value(name, p, ReadBool, WriteBool)
}

func Uint8Field(name string, p *uint8) Field {
	return value(name, p, ReadUint8, WriteUint8)
}

func Int8Field(name string, p *int8) Field {
	return value(name, p, ReadInt8, WriteInt8)
}

func UShortField(name string, p *uint16) Field {
	return value(name, p, ReadUnsignedShort, WriteUnsignedShort)
}

func Int16Field(name string, p *int16) Field {
	return value(name, p, ReadInt16, WriteInt16)
}

func Int32Field(name string, p *int32) Field {
	return value(name, p, ReadInt32, WriteInt32)
}

func Int64Field(name string, p *int64) Field {
	return value(name, p, ReadInt64, WriteInt64)
}

func FloatField(name string, p *float32) Field {
	return value(name, p, ReadFloat, WriteFloat)
}

func DoubleField(name string, p *float64) Field {
	return value(name, p, ReadDouble, WriteDouble)
}

func StringField(name string, p *string, max int) Field {
	return value(name, p, func(r io.Reader) (string, error) { return ReadStringMax(r, max) }, WriteString)
}

func UUIDField(name string, p *uuid.UUID) Field {
	return value(name, p, ReadUUID, WriteUUID)
}

func ByteArrayField(name string, p *[]byte, max int) Field {
	return value(name, p, func(r io.Reader) ([]byte, error) { return ReadByteArray(r, max) }, WriteByteArray)
}

func LongArrayField(name string, p *[]int64, max int) Field {
	return value(name, p, func(r io.Reader) ([]int64, error) { return ReadLongArray(r, max) }, WriteLongArray)
}

// RestField takes every remaining byte of the body.
func RestField(name string, p *[]byte) Field {
	return value(name, p, ReadRemaining, func(w io.Writer, b []byte) error {
		_, err := w.Write(b)
		return err
	})
}

func PositionField(name string, p *BlockPos) Field {
	return value(name, p, ReadPosition, WritePosition)
}

func SectionPosField(name string, p *SectionPos) Field {
	return value(name, p, ReadSectionPos, WriteSectionPos)
}

func NBTField(name string, p *nbt.RawMessage) Field {
	return value(name, p, ReadNBT, WriteNBT)
}

func TextField(name string, p *TextComponent) Field {
	return Field{
		Name: name,
		Decode: func(r io.Reader) error {
			raw, err := ReadNBT(r)
			p.Raw = raw
			return err
		},
		Encode: func(w io.Writer) error { return WriteNBT(w, p.Raw) },
	}
}

// EnumField reads a VarInt tag and rejects values valid does not accept.
func EnumField(name string, p *int32, valid func(int32) bool) Field {
	return value(name, p, func(r io.Reader) (int32, error) { return ReadEnum(r, valid) }, WriteVarint)
}

// EnumRange accepts tags in [lo, hi].
func EnumRange(lo, hi int32) func(int32) bool {
	return func(tag int32) bool { return tag >= lo && tag <= hi }
}

// FlagsField packs booleans into a single byte, the first flag in bit 0.
func FlagsField(name string, flags ...*bool) Field {
	return Field{
		Name: name,
		Decode: func(r io.Reader) error {
			b, err := ReadUint8(r)
			if err != nil {
				return err
			}
			UnpackFlags(b, flags...)
			return nil
		},
		Encode: func(w io.Writer) error {
			vals := make([]bool, len(flags))
			for i, f := range flags {
				vals[i] = *f
			}
			return WriteUint8(w, PackFlags(vals...))
		},
	}
}

func OptionalField[T any](name string, p **T, read func(io.Reader) (T, error), write func(io.Writer, T) error) Field {
	return value(name, p,
		func(r io.Reader) (*T, error) { return ReadOptional(r, read) },
		func(w io.Writer, v *T) error { return WriteOptional(w, v, write) },
	)
}

func SequenceField[T any](name string, p *[]T, max int, read func(io.Reader) (T, error), write func(io.Writer, T) error) Field {
	return value(name, p,
		func(r io.Reader) ([]T, error) { return ReadSequence(r, max, read) },
		func(w io.Writer, items []T) error { return WriteSequence(w, items, write) },
	)
}

// StructSequenceField is a sequence of composite values that describe
// themselves with a Schema.
func StructSequenceField[T any, PT interface {
	*T
	Schema
}](name string, p *[]T, max int, v ProtocolVersion) Field {
	read := func(r io.Reader) (T, error) {
		var elem T
		err := PT(&elem).Fields(v).Decode(r)
		return elem, err
	}
	write := func(w io.Writer, elem T) error {
		return PT(&elem).Fields(v).Encode(w)
	}
	return SequenceField(name, p, max, read, write)
}

// CustomField covers layouts the helpers above do not express.
func CustomField(name string, decode func(io.Reader) error, encode func(io.Writer) error) Field {
	return Field{Name: name, Decode: decode, Encode: encode}
}
