package protocol

import "io"

// Intention is the only handshake packet. It selects the state both
// streams move to next.
type Intention struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	Intent          Intent
}

func (*Intention) Kind() PacketKind { return KindIntention }

func (p *Intention) Fields(ProtocolVersion) Fields {
	return Fields{
		VarIntField("protocol_version", &p.ProtocolVersion),
		StringField("server_address", &p.ServerAddress, 255),
		UShortField("server_port", &p.ServerPort),
		value("intent", &p.Intent,
			func(r io.Reader) (Intent, error) {
				tag, err := ReadEnum(r, EnumRange(int32(IntentStatus), int32(IntentTransfer)))
				return Intent(tag), err
			},
			func(w io.Writer, i Intent) error { return WriteVarint(w, int32(i)) },
		),
	}
}
