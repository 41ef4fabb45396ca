package protocol

type SystemChat struct {
	Content     TextComponent
	IsActionBar bool
}

func (*SystemChat) Kind() PacketKind { return KindSystemChat }

func (p *SystemChat) Fields(ProtocolVersion) Fields {
	return Fields{
		TextField("content", &p.Content),
		BoolField("overlay", &p.IsActionBar),
	}
}
