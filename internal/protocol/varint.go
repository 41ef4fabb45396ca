package protocol

import (
	"io"
)

const (
	SEGMENT_BITS = 0x7F
	CONTINUE_BIT = 0x80

	MaxVarIntLen  = 5
	MaxVarLongLen = 10
)

// readByte reads a single byte. EOF before the first byte of a multi-byte
// value is reported by the callers as io.ErrUnexpectedEOF.
func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadVarint decodes a LEB128 VarInt. A clean EOF before the first byte is
// returned as io.EOF so frame readers can tell a closed stream from a
// truncated one.
func ReadVarint(r io.Reader) (value int32, err error) {
	var uvalue uint32
	for i := 0; ; i++ {
		if i >= MaxVarIntLen {
			return 0, ErrVarIntTooLong
		}
		b, err := readByte(r)
		if err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		uvalue |= uint32(b&SEGMENT_BITS) << (7 * i)
		if b&CONTINUE_BIT == 0 {
			break
		}
	}
	return int32(uvalue), nil
}

func WriteVarint(w io.Writer, value int32) (err error) {
	var buf [MaxVarIntLen]byte
	_, err = w.Write(AppendVarint(buf[:0], value))
	return
}

// AppendVarint appends the encoding of value to dst.
func AppendVarint(dst []byte, value int32) []byte {
	uvalue := uint32(value)
	for {
		temp := byte(uvalue & SEGMENT_BITS)
		uvalue >>= 7
		if uvalue != 0 {
			temp |= CONTINUE_BIT
		}
		dst = append(dst, temp)
		if uvalue == 0 {
			return dst
		}
	}
}

// VarintLen returns the encoded size of value in bytes.
func VarintLen(value int32) int {
	uvalue := uint32(value)
	n := 1
	for uvalue >= CONTINUE_BIT {
		uvalue >>= 7
		n++
	}
	return n
}

func ReadVarLong(r io.Reader) (value int64, err error) {
	var uvalue uint64
	for i := 0; ; i++ {
		if i >= MaxVarLongLen {
			return 0, ErrVarLongTooLong
		}
		b, err := readByte(r)
		if err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		uvalue |= uint64(b&SEGMENT_BITS) << (7 * i)
		if b&CONTINUE_BIT == 0 {
			break
		}
	}
	return int64(uvalue), nil
}

func WriteVarLong(w io.Writer, value int64) (err error) {
	var buf [MaxVarLongLen]byte
	_, err = w.Write(AppendVarLong(buf[:0], value))
	return
}

func AppendVarLong(dst []byte, value int64) []byte {
	uvalue := uint64(value)
	for {
		temp := byte(uvalue & SEGMENT_BITS)
		uvalue >>= 7
		if uvalue != 0 {
			temp |= CONTINUE_BIT
		}
		dst = append(dst, temp)
		if uvalue == 0 {
			return dst
		}
	}
}

func VarLongLen(value int64) int {
	uvalue := uint64(value)
	n := 1
	for uvalue >= CONTINUE_BIT {
		uvalue >>= 7
		n++
	}
	return n
}
