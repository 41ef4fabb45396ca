package protocol

// KeepAlive is used in configuration and play, in both directions. The
// receiver echoes the id back unchanged.
type KeepAlive struct {
	KeepAliveID int64
}

func (*KeepAlive) Kind() PacketKind { return KindKeepAlive }

func (p *KeepAlive) Fields(ProtocolVersion) Fields {
	return Fields{Int64Field("keep_alive_id", &p.KeepAliveID)}
}
