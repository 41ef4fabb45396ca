package protocol

import (
	"bytes"
	"fmt"
)

// PacketKind names a packet shape independently of its per-version id.
type PacketKind string

// Packet is one decoded packet. Decoding fills a fresh value; encoding only
// reads it.
type Packet interface {
	Kind() PacketKind
	Schema
}

// RawPacket is a frame body split into id and undecoded payload.
type RawPacket struct {
	ID      int32
	Payload []byte
}

// Marshal encodes the body of p without an id.
func Marshal(p Packet, v ProtocolVersion) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Fields(v).Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Kind(), err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes payload into p. The whole payload must be consumed.
func Unmarshal(payload []byte, p Packet, v ProtocolVersion) error {
	r := bytes.NewReader(payload)
	if err := p.Fields(v).Decode(r); err != nil {
		return &PacketDecodeError{Kind: p.Kind(), Offset: int64(len(payload) - r.Len()), Err: err}
	}
	if r.Len() != 0 {
		return &PacketDecodeError{
			Kind:   p.Kind(),
			Offset: int64(len(payload) - r.Len()),
			Err:    fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.Len()),
		}
	}
	return nil
}

// Decode looks up raw.ID in the catalog of (state, dir) and decodes the body.
func (reg *Registry) Decode(state State, dir Direction, raw *RawPacket) (Packet, error) {
	p, err := reg.New(state, dir, raw.ID)
	if err != nil {
		return nil, err
	}
	if err := Unmarshal(raw.Payload, p, reg.version); err != nil {
		if de, ok := err.(*PacketDecodeError); ok {
			de.State = state
			de.ID = raw.ID
		}
		return nil, err
	}
	return p, nil
}

// Encode resolves the id of p for (state, dir) and encodes its body.
func (reg *Registry) Encode(state State, dir Direction, p Packet) (*RawPacket, error) {
	id, ok := reg.ID(state, dir, p.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: %s %s is not part of state %s", ErrWrongState, dir, p.Kind(), state)
	}
	payload, err := Marshal(p, reg.version)
	if err != nil {
		return nil, err
	}
	return &RawPacket{ID: id, Payload: payload}, nil
}
