package protocol

import (
	"io"

	"github.com/Tnze/go-mc/nbt"
)

// CustomPayload is the plugin message of the configuration state, used in
// both directions.
type CustomPayload struct {
	Channel string
	Data    []byte
}

func (*CustomPayload) Kind() PacketKind { return KindCustomPayload }

func (p *CustomPayload) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("channel", &p.Channel, DefaultStringMax),
		RestField("data", &p.Data),
	}
}

// Disconnect is sent in configuration and play with an NBT text reason.
type Disconnect struct {
	Reason TextComponent
}

func (*Disconnect) Kind() PacketKind { return KindDisconnect }

func (p *Disconnect) Fields(ProtocolVersion) Fields {
	return Fields{TextField("reason", &p.Reason)}
}

// FinishConfiguration is sent by the server to end configuration and echoed
// by the client as acknowledgement.
type FinishConfiguration struct{}

func (*FinishConfiguration) Kind() PacketKind              { return KindFinishConfiguration }
func (*FinishConfiguration) Fields(ProtocolVersion) Fields { return nil }

type ConfigPing struct {
	ID int32
}

func (*ConfigPing) Kind() PacketKind { return KindConfigPing }

func (p *ConfigPing) Fields(ProtocolVersion) Fields {
	return Fields{Int32Field("id", &p.ID)}
}

type ConfigPong struct {
	ID int32
}

func (*ConfigPong) Kind() PacketKind { return KindConfigPong }

func (p *ConfigPong) Fields(ProtocolVersion) Fields {
	return Fields{Int32Field("id", &p.ID)}
}

type RegistryData struct {
	RegistryID string
	Entries    []RegistryEntry
}

// RegistryEntry has no data when the client is expected to take it from a
// known pack.
type RegistryEntry struct {
	ID   string
	Data *nbt.RawMessage
}

func (e *RegistryEntry) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("id", &e.ID, DefaultStringMax),
		OptionalField("data", &e.Data, ReadNBT, WriteNBT),
	}
}

func (*RegistryData) Kind() PacketKind { return KindRegistryData }

func (p *RegistryData) Fields(v ProtocolVersion) Fields {
	return Fields{
		StringField("registry_id", &p.RegistryID, DefaultStringMax),
		StructSequenceField("entries", &p.Entries, DefaultMaxElements, v),
	}
}

type UpdateEnabledFeatures struct {
	Features []string
}

func (*UpdateEnabledFeatures) Kind() PacketKind { return KindUpdateEnabledFeatures }

func (p *UpdateEnabledFeatures) Fields(ProtocolVersion) Fields {
	return Fields{
		SequenceField("features", &p.Features, 1024, ReadString, WriteString),
	}
}

type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

func (k *KnownPack) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("namespace", &k.Namespace, DefaultStringMax),
		StringField("id", &k.ID, DefaultStringMax),
		StringField("version", &k.Version, DefaultStringMax),
	}
}

// SelectKnownPacks lists the data packs the server offers, and in reply
// the subset the client already has.
type SelectKnownPacks struct {
	Packs []KnownPack
}

func (*SelectKnownPacks) Kind() PacketKind { return KindSelectKnownPacks }

func (p *SelectKnownPacks) Fields(v ProtocolVersion) Fields {
	return Fields{StructSequenceField("packs", &p.Packs, 64, v)}
}

const (
	ChatModeEnabled int32 = iota
	ChatModeCommandsOnly
	ChatModeHidden
)

const (
	MainHandLeft int32 = iota
	MainHandRight
)

const (
	ParticlesAll int32 = iota
	ParticlesDecreased
	ParticlesMinimal
)

type SkinParts struct {
	Cape, Jacket, LeftSleeve, RightSleeve, LeftPants, RightPants, Hat bool
}

// AllSkinParts enables every displayed skin layer.
var AllSkinParts = SkinParts{true, true, true, true, true, true, true}

type ClientInformation struct {
	Locale              string
	ViewDistance        int8
	ChatMode            int32
	ChatColors          bool
	SkinParts           SkinParts
	MainHand            int32
	EnableTextFiltering bool
	EnableServerListing bool
	ParticleStatus      int32
}

func (*ClientInformation) Kind() PacketKind { return KindClientInformation }

func (p *ClientInformation) Fields(v ProtocolVersion) Fields {
	s := &p.SkinParts
	fs := Fields{
		StringField("locale", &p.Locale, 16),
		Int8Field("view_distance", &p.ViewDistance),
		EnumField("chat_mode", &p.ChatMode, EnumRange(ChatModeEnabled, ChatModeHidden)),
		BoolField("chat_colors", &p.ChatColors),
		FlagsField("skin_parts", &s.Cape, &s.Jacket, &s.LeftSleeve, &s.RightSleeve, &s.LeftPants, &s.RightPants, &s.Hat),
		EnumField("main_hand", &p.MainHand, EnumRange(MainHandLeft, MainHandRight)),
		BoolField("text_filtering", &p.EnableTextFiltering),
		BoolField("server_listing", &p.EnableServerListing),
	}
	if v.HasParticleStatus() {
		fs = append(fs, EnumField("particle_status", &p.ParticleStatus, EnumRange(ParticlesAll, ParticlesMinimal)))
	}
	return fs
}

// readIdentifier reads a namespaced resource location.
func readIdentifier(r io.Reader) (string, error) {
	return ReadStringMax(r, DefaultStringMax)
}
