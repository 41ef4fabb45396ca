package protocol

import (
	"io"

	"github.com/google/uuid"
)

const maxPlayerName = 16

type LoginStart struct {
	Username string
	UUID     uuid.UUID
}

func (*LoginStart) Kind() PacketKind { return KindLoginStart }

func (p *LoginStart) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("name", &p.Username, maxPlayerName),
		UUIDField("uuid", &p.UUID),
	}
}

// LoginDisconnect carries a JSON text component, unlike the NBT reason used
// after login.
type LoginDisconnect struct {
	Reason string
}

func (*LoginDisconnect) Kind() PacketKind { return KindLoginDisconnect }

func (p *LoginDisconnect) Fields(ProtocolVersion) Fields {
	return Fields{StringField("reason", &p.Reason, 262144)}
}

type EncryptionRequest struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

func (*EncryptionRequest) Kind() PacketKind { return KindEncryptionRequest }

func (p *EncryptionRequest) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("server_id", &p.ServerID, 20),
		ByteArrayField("public_key", &p.PublicKey, 1024),
		ByteArrayField("verify_token", &p.VerifyToken, 256),
		BoolField("should_authenticate", &p.ShouldAuthenticate),
	}
}

type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*EncryptionResponse) Kind() PacketKind { return KindEncryptionResponse }

func (p *EncryptionResponse) Fields(ProtocolVersion) Fields {
	return Fields{
		ByteArrayField("shared_secret", &p.SharedSecret, 256),
		ByteArrayField("verify_token", &p.VerifyToken, 256),
	}
}

type LoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []Property
	// StrictErrorHandling only exists on the wire before 1.21.2.
	StrictErrorHandling bool
}

type Property struct {
	Name      string
	Value     string
	Signature *string
}

func (p *Property) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("name", &p.Name, 64),
		StringField("value", &p.Value, DefaultStringMax),
		OptionalField("signature", &p.Signature,
			func(r io.Reader) (string, error) { return ReadStringMax(r, 1024) },
			WriteString),
	}
}

func (*LoginSuccess) Kind() PacketKind { return KindLoginSuccess }

func (p *LoginSuccess) Fields(v ProtocolVersion) Fields {
	fs := Fields{
		UUIDField("uuid", &p.UUID),
		StringField("username", &p.Username, maxPlayerName),
		StructSequenceField("properties", &p.Properties, 16, v),
	}
	if v.StrictLoginErrors() {
		fs = append(fs, BoolField("strict_error_handling", &p.StrictErrorHandling))
	}
	return fs
}

// SetCompression enables frame compression for both directions. A negative
// threshold disables it.
type SetCompression struct {
	Threshold int32
}

func (*SetCompression) Kind() PacketKind { return KindSetCompression }

func (p *SetCompression) Fields(ProtocolVersion) Fields {
	return Fields{VarIntField("threshold", &p.Threshold)}
}

type LoginPluginRequest struct {
	MessageID int32
	Channel   string
	Data      []byte
}

func (*LoginPluginRequest) Kind() PacketKind { return KindLoginPluginRequest }

func (p *LoginPluginRequest) Fields(ProtocolVersion) Fields {
	return Fields{
		VarIntField("message_id", &p.MessageID),
		StringField("channel", &p.Channel, DefaultStringMax),
		RestField("data", &p.Data),
	}
}

// LoginPluginResponse answers a plugin request. Data == nil means the
// client did not understand the channel.
type LoginPluginResponse struct {
	MessageID int32
	Data      *[]byte
}

func (*LoginPluginResponse) Kind() PacketKind { return KindLoginPluginResponse }

func (p *LoginPluginResponse) Fields(ProtocolVersion) Fields {
	return Fields{
		VarIntField("message_id", &p.MessageID),
		OptionalField("data", &p.Data, ReadRemaining, func(w io.Writer, b []byte) error {
			_, err := w.Write(b)
			return err
		}),
	}
}

type LoginAcknowledged struct{}

func (*LoginAcknowledged) Kind() PacketKind              { return KindLoginAcknowledged }
func (*LoginAcknowledged) Fields(ProtocolVersion) Fields { return nil }

type CookieRequest struct {
	Key string
}

func (*CookieRequest) Kind() PacketKind { return KindCookieRequest }

func (p *CookieRequest) Fields(ProtocolVersion) Fields {
	return Fields{StringField("key", &p.Key, DefaultStringMax)}
}

type CookieResponse struct {
	Key     string
	Payload *[]byte
}

func (*CookieResponse) Kind() PacketKind { return KindCookieResponse }

func (p *CookieResponse) Fields(ProtocolVersion) Fields {
	return Fields{
		StringField("key", &p.Key, DefaultStringMax),
		OptionalField("payload", &p.Payload,
			func(r io.Reader) ([]byte, error) { return ReadByteArray(r, 5120) },
			WriteByteArray),
	}
}
