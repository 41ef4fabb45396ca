package protocol

import (
	"fmt"
	"io"
)

type GlobalPos struct {
	DimensionName string
	Pos           BlockPos
}

func (g *GlobalPos) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("dimension_name", &g.DimensionName, DefaultStringMax),
		PositionField("location", &g.Pos),
	}
}

// SpawnInfo is shared by the play login and respawn packets.
type SpawnInfo struct {
	DimensionType    int32
	DimensionName    string
	HashedSeed       int64
	Gamemode         uint8
	PreviousGamemode int8
	IsDebug          bool
	IsFlat           bool
	Death            *GlobalPos
	PortalCooldown   int32
	SeaLevel         int32
}

func (s *SpawnInfo) Fields(v ProtocolVersion) Fields {
	fs := Fields{
		VarIntField("dimension_type", &s.DimensionType),
		value("dimension_name", &s.DimensionName, readIdentifier, WriteString),
		Int64Field("hashed_seed", &s.HashedSeed),
		Uint8Field("gamemode", &s.Gamemode),
		Int8Field("previous_gamemode", &s.PreviousGamemode),
		BoolField("is_debug", &s.IsDebug),
		BoolField("is_flat", &s.IsFlat),
		OptionalField("death_location", &s.Death, readGlobalPos(v), writeGlobalPos(v)),
		VarIntField("portal_cooldown", &s.PortalCooldown),
	}
	if v.HasSeaLevel() {
		fs = append(fs, VarIntField("sea_level", &s.SeaLevel))
	}
	return fs
}

func readGlobalPos(v ProtocolVersion) func(io.Reader) (GlobalPos, error) {
	return func(r io.Reader) (GlobalPos, error) {
		var g GlobalPos
		err := g.Fields(v).Decode(r)
		return g, err
	}
}

func writeGlobalPos(v ProtocolVersion) func(io.Writer, GlobalPos) error {
	return func(w io.Writer, g GlobalPos) error {
		return g.Fields(v).Encode(w)
	}
}

type PlayLogin struct {
	EntityID            int32
	IsHardcore          bool
	WorldNames          []string
	MaxPlayers          int32
	ViewDistance        int32
	SimulationDistance  int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
	DoLimitedCrafting   bool
	WorldState          SpawnInfo
	EnforcesSecureChat  bool
}

func (*PlayLogin) Kind() PacketKind { return KindPlayLogin }

func (p *PlayLogin) Fields(v ProtocolVersion) Fields {
	return Fields{
		Int32Field("entity_id", &p.EntityID),
		BoolField("is_hardcore", &p.IsHardcore),
		SequenceField("dimension_names", &p.WorldNames, 256, readIdentifier, WriteString),
		nonNegative(VarIntField("max_players", &p.MaxPlayers), &p.MaxPlayers),
		nonNegative(VarIntField("view_distance", &p.ViewDistance), &p.ViewDistance),
		nonNegative(VarIntField("simulation_distance", &p.SimulationDistance), &p.SimulationDistance),
		BoolField("reduced_debug_info", &p.ReducedDebugInfo),
		BoolField("enable_respawn_screen", &p.EnableRespawnScreen),
		BoolField("do_limited_crafting", &p.DoLimitedCrafting),
		CustomField("spawn_info",
			func(r io.Reader) error { return p.WorldState.Fields(v).Decode(r) },
			func(w io.Writer) error { return p.WorldState.Fields(v).Encode(w) }),
		BoolField("enforces_secure_chat", &p.EnforcesSecureChat),
	}
}

// Respawn data flags.
const (
	KeepAttributes uint8 = 0x01
	KeepMetadata   uint8 = 0x02
)

type Respawn struct {
	WorldState SpawnInfo
	DataKept   uint8
}

func (*Respawn) Kind() PacketKind { return KindRespawn }

func (p *Respawn) Fields(v ProtocolVersion) Fields {
	return Fields{
		CustomField("spawn_info",
			func(r io.Reader) error { return p.WorldState.Fields(v).Decode(r) },
			func(w io.Writer) error { return p.WorldState.Fields(v).Encode(w) }),
		Uint8Field("data_kept", &p.DataKept),
	}
}

// nonNegative rejects negative values after f decodes into p.
func nonNegative(f Field, p *int32) Field {
	decode := f.Decode
	f.Decode = func(r io.Reader) error {
		if err := decode(r); err != nil {
			return err
		}
		if *p < 0 {
			return fmt.Errorf("%w: negative value %d", ErrInvalidPacket, *p)
		}
		return nil
	}
	return f
}
