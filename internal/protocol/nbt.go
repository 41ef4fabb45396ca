package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
)

// NBT tags travel in the nameless network format: a tag type byte followed
// directly by the payload. A lone TagEnd byte stands for "no data".

const TagEnd byte = 0

var ErrNBTReader = errors.New("nbt decoding requires an io.ByteScanner")

// ReadNBT reads one network-format tag into a raw message. The reader must
// implement io.ByteScanner so the decoder does not buffer past the tag; the
// packet bodies handed to Decode are always *bytes.Reader.
func ReadNBT(r io.Reader) (nbt.RawMessage, error) {
	bs, ok := r.(io.ByteScanner)
	if !ok {
		return nbt.RawMessage{}, ErrNBTReader
	}
	tag, err := bs.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nbt.RawMessage{}, err
	}
	if tag == TagEnd {
		return nbt.RawMessage{Type: TagEnd}, nil
	}
	if err := bs.UnreadByte(); err != nil {
		return nbt.RawMessage{}, err
	}

	var raw nbt.RawMessage
	dec := nbt.NewDecoder(r)
	dec.NetworkFormat(true)
	if _, err := dec.Decode(&raw); err != nil {
		return nbt.RawMessage{}, fmt.Errorf("read nbt: %w", err)
	}
	return raw, nil
}

// WriteNBT writes a raw message. A zero message is written as TagEnd.
func WriteNBT(w io.Writer, m nbt.RawMessage) error {
	if m.Type == TagEnd {
		_, err := w.Write([]byte{TagEnd})
		return err
	}
	if _, err := w.Write([]byte{m.Type}); err != nil {
		return err
	}
	_, err := w.Write(m.Data)
	return err
}

// ReadNBTInto decodes one network-format tag straight into v.
func ReadNBTInto(r io.Reader, v any) error {
	raw, err := ReadNBT(r)
	if err != nil {
		return err
	}
	return DecodeNBT(raw, v)
}

// WriteNBTFrom encodes v as one network-format tag.
func WriteNBTFrom(w io.Writer, v any) error {
	enc := nbt.NewEncoder(w)
	enc.NetworkFormat(true)
	if err := enc.Encode(v, ""); err != nil {
		return fmt.Errorf("write nbt: %w", err)
	}
	return nil
}

// DecodeNBT unmarshals a raw message into v. TagEnd leaves v untouched.
func DecodeNBT(m nbt.RawMessage, v any) error {
	if m.Type == TagEnd {
		return nil
	}
	var buf bytes.Buffer
	if err := WriteNBT(&buf, m); err != nil {
		return err
	}
	dec := nbt.NewDecoder(bytes.NewReader(buf.Bytes()))
	dec.NetworkFormat(true)
	_, err := dec.Decode(v)
	return err
}

// EncodeNBT marshals v into a raw message.
func EncodeNBT(v any) (nbt.RawMessage, error) {
	var buf bytes.Buffer
	if err := WriteNBTFrom(&buf, v); err != nil {
		return nbt.RawMessage{}, err
	}
	b := buf.Bytes()
	if len(b) == 0 {
		return nbt.RawMessage{}, fmt.Errorf("%w: empty nbt encoding", ErrInvalidPacket)
	}
	return nbt.RawMessage{Type: b[0], Data: b[1:]}, nil
}

// TextComponent wraps a chat component sent as NBT. Plain string components
// arrive as a TagString, structured ones as a compound with a "text" key.
type TextComponent struct {
	Raw nbt.RawMessage
}

// Text returns the literal text of the component. Formatting and children
// are ignored.
func (c TextComponent) Text() string {
	switch c.Raw.Type {
	case TagEnd:
		return ""
	case nbt.TagString:
		var s string
		if err := DecodeNBT(c.Raw, &s); err == nil {
			return s
		}
	case nbt.TagCompound:
		var comp struct {
			Text  string           `nbt:"text"`
			Extra []nbt.RawMessage `nbt:"extra"`
		}
		if err := DecodeNBT(c.Raw, &comp); err == nil {
			text := comp.Text
			for _, e := range comp.Extra {
				text += TextComponent{Raw: e}.Text()
			}
			return text
		}
	}
	return ""
}

func NewTextComponent(text string) TextComponent {
	raw, err := EncodeNBT(text)
	if err != nil {
		return TextComponent{}
	}
	return TextComponent{Raw: raw}
}
