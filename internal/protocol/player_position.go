package protocol

import "io"

// Relative flags of PlayerPosition. A set bit means the value is an offset
// from the current one.
const (
	RelX        = 0x001
	RelY        = 0x002
	RelZ        = 0x004
	RelYaw      = 0x008
	RelPitch    = 0x010
	RelVelX     = 0x020
	RelVelY     = 0x040
	RelVelZ     = 0x080
	RelRotDelta = 0x100
)

// PlayerPosition teleports the client. Before 1.21.2 the teleport id comes
// last, there is no velocity and the flags fit in one byte.
type PlayerPosition struct {
	TeleportID int32
	X          float64
	Y          float64
	Z          float64
	Dx         float64
	Dy         float64
	Dz         float64
	Yaw        float32
	Pitch      float32
	Flags      int32
}

func (*PlayerPosition) Kind() PacketKind { return KindPlayerPosition }

func (p *PlayerPosition) Fields(v ProtocolVersion) Fields {
	if v < V1_21_11 {
		return Fields{
			DoubleField("x", &p.X),
			DoubleField("y", &p.Y),
			DoubleField("z", &p.Z),
			FloatField("yaw", &p.Yaw),
			FloatField("pitch", &p.Pitch),
			value("flags", &p.Flags,
				func(r io.Reader) (int32, error) {
					b, err := ReadUint8(r)
					return int32(b), err
				},
				func(w io.Writer, f int32) error { return WriteUint8(w, uint8(f)) }),
			VarIntField("teleport_id", &p.TeleportID),
		}
	}
	return Fields{
		VarIntField("teleport_id", &p.TeleportID),
		DoubleField("x", &p.X),
		DoubleField("y", &p.Y),
		DoubleField("z", &p.Z),
		DoubleField("dx", &p.Dx),
		DoubleField("dy", &p.Dy),
		DoubleField("dz", &p.Dz),
		FloatField("yaw", &p.Yaw),
		FloatField("pitch", &p.Pitch),
		Int32Field("flags", &p.Flags),
	}
}

// Apply resolves relative components against the current position.
func (p *PlayerPosition) Apply(x, y, z float64, yaw, pitch float32) (float64, float64, float64, float32, float32) {
	if p.Flags&RelX != 0 {
		x += p.X
	} else {
		x = p.X
	}
	if p.Flags&RelY != 0 {
		y += p.Y
	} else {
		y = p.Y
	}
	if p.Flags&RelZ != 0 {
		z += p.Z
	} else {
		z = p.Z
	}
	if p.Flags&RelYaw != 0 {
		yaw += p.Yaw
	} else {
		yaw = p.Yaw
	}
	if p.Flags&RelPitch != 0 {
		pitch += p.Pitch
	} else {
		pitch = p.Pitch
	}
	return x, y, z, yaw, pitch
}

type AcceptTeleportation struct {
	TeleportID int32
}

func (*AcceptTeleportation) Kind() PacketKind { return KindAcceptTeleportation }

func (p *AcceptTeleportation) Fields(ProtocolVersion) Fields {
	return Fields{VarIntField("teleport_id", &p.TeleportID)}
}

// PlayerLoaded tells the server the client finished loading the world
// after login or respawn.
type PlayerLoaded struct{}

func (*PlayerLoaded) Kind() PacketKind              { return KindPlayerLoaded }
func (*PlayerLoaded) Fields(ProtocolVersion) Fields { return nil }
