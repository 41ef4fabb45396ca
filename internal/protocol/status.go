package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type StatusRequest struct{}

func (*StatusRequest) Kind() PacketKind              { return KindStatusRequest }
func (*StatusRequest) Fields(ProtocolVersion) Fields { return nil }

type StatusResponse struct {
	JSON string
}

func (*StatusResponse) Kind() PacketKind { return KindStatusResponse }

func (p *StatusResponse) Fields(ProtocolVersion) Fields {
	return Fields{StringField("json_response", &p.JSON, DefaultStringMax)}
}

// Status decodes the JSON document of the response.
func (p *StatusResponse) Status() (*ServerStatus, error) {
	var s ServerStatus
	if err := json.Unmarshal([]byte(p.JSON), &s); err != nil {
		return nil, fmt.Errorf("parse status json: %w", err)
	}
	return &s, nil
}

func NewStatusResponse(s *ServerStatus) (*StatusResponse, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{JSON: string(b)}, nil
}

type PingRequest struct {
	Payload int64
}

func (*PingRequest) Kind() PacketKind { return KindPingRequest }

func (p *PingRequest) Fields(ProtocolVersion) Fields {
	return Fields{Int64Field("payload", &p.Payload)}
}

type PongResponse struct {
	Payload int64
}

func (*PongResponse) Kind() PacketKind { return KindPongResponse }

func (p *PongResponse) Fields(ProtocolVersion) Fields {
	return Fields{Int64Field("payload", &p.Payload)}
}

// ServerStatus is the server list document carried by StatusResponse.
type ServerStatus struct {
	Version            StatusVersion   `json:"version"`
	Players            StatusPlayers   `json:"players"`
	Description        json.RawMessage `json:"description,omitempty"`
	Favicon            string          `json:"favicon,omitempty"`
	EnforcesSecureChat bool            `json:"enforcesSecureChat,omitempty"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusPlayer `json:"sample,omitempty"`
}

type StatusPlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// MOTD flattens the description, which is either a plain string or a text
// component object.
func (s *ServerStatus) MOTD() string {
	if len(s.Description) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(s.Description, &plain); err == nil {
		return plain
	}
	var comp chatJSON
	if err := json.Unmarshal(s.Description, &comp); err != nil {
		return ""
	}
	return comp.flatten()
}

type chatJSON struct {
	Text  string     `json:"text"`
	Extra []chatJSON `json:"extra"`
}

func (c chatJSON) flatten() string {
	out := c.Text
	for _, e := range c.Extra {
		out += e.flatten()
	}
	return out
}
