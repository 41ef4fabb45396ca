// Package proxy relays connections between clients and a backend server,
// tracking the protocol state of both directions from the frames it sees.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/hook"
	"github.com/Versifine/locus/internal/logger"
	"github.com/Versifine/locus/internal/protocol"
)

type route struct {
	tag string
	dir protocol.Direction
}

var (
	upstream   = route{tag: "C->S", dir: protocol.Serverbound}
	downstream = route{tag: "S->C", dir: protocol.Clientbound}
)

// observed lists the packets the relay decodes. Everything else is
// forwarded without being parsed, including ids outside the catalog.
var observed = map[protocol.PacketKind]bool{
	protocol.KindIntention:                 true,
	protocol.KindLoginStart:                true,
	protocol.KindLoginSuccess:              true,
	protocol.KindLoginDisconnect:           true,
	protocol.KindSetCompression:            true,
	protocol.KindEncryptionRequest:         true,
	protocol.KindEncryptionResponse:        true,
	protocol.KindLoginAcknowledged:         true,
	protocol.KindFinishConfiguration:       true,
	protocol.KindStartConfiguration:        true,
	protocol.KindConfigurationAcknowledged: true,
	protocol.KindDisconnect:                true,
}

// handshakeRegistry decodes the Intention, which is the same in every
// version.
var handshakeRegistry = protocol.MustRegistry(protocol.V1_21_11)

type session struct {
	cs   *protocol.ConnState
	bus  *event.Bus
	hook hook.Hook
	log  *slog.Logger
	reg  atomic.Pointer[protocol.Registry]
	// opaque is set once frames can no longer be parsed: the session is
	// encrypted or the client speaks an unsupported version.
	opaque atomic.Bool
}

func newSession(bus *event.Bus, h hook.Hook, log *slog.Logger) *session {
	return &session{cs: protocol.NewConnState(), bus: bus, hook: h, log: log}
}

// relay copies frames from src to dst byte for byte. Frames are parsed only
// to follow state and compression changes, and the change is applied before
// the frame is forwarded so the peer's reply is read with the new settings.
func (s *session) relay(src io.Reader, dst io.Writer, rt route) error {
	br := bufio.NewReader(src)
	for {
		if s.opaque.Load() {
			return pipeOpaque(dst, br)
		}
		body, err := protocol.ReadFrame(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		raw, state, pkt, err := s.inspect(body, rt)
		if err != nil {
			return fmt.Errorf("%s: %w", rt.tag, err)
		}
		// packets the relay decodes drive the state and are never dropped
		if pkt == nil && s.hook != nil && !s.hook.OnPacket(hook.Packet{Direction: rt.dir, State: state, Raw: raw}) {
			s.log.Debug("Packet dropped by hook", "tag", rt.tag, logger.Packet(state, rt.dir, raw.ID))
			continue
		}

		frame := protocol.AppendVarint(make([]byte, 0, len(body)+protocol.MaxVarIntLen), int32(len(body)))
		if _, err := dst.Write(append(frame, body...)); err != nil {
			return err
		}

		switch {
		case pkt == nil:
		case pkt.Kind() == protocol.KindEncryptionRequest, pkt.Kind() == protocol.KindEncryptionResponse:
			// the side that forwarded the packet encrypts from here on
			s.log.Info("Session is encrypted, relaying without inspection", "tag", rt.tag)
			s.opaque.Store(true)
		}
	}
}

// inspect decodes body when it carries a packet that matters to the relay
// and applies its effect. pkt is nil for packets passed through as is.
func (s *session) inspect(body []byte, rt route) (raw *protocol.RawPacket, state protocol.State, pkt protocol.Packet, err error) {
	raw, err = protocol.DecodeFrame(body, s.cs.GetThreshold())
	if err != nil {
		return nil, 0, nil, err
	}
	from := s.cs.Streams()
	state = from.Get(rt.dir)

	reg := s.reg.Load()
	if state == protocol.Handshaking {
		reg = handshakeRegistry
	}
	if reg == nil {
		return raw, state, nil, nil
	}
	kind, ok := reg.Lookup(state, rt.dir, raw.ID)
	if !ok || !observed[kind] {
		s.log.Debug("Packet relayed", "tag", rt.tag, logger.Packet(state, rt.dir, raw.ID))
		return raw, state, nil, nil
	}
	pkt, err = reg.Decode(state, rt.dir, raw)
	if err != nil {
		return nil, 0, nil, err
	}
	s.publish(rt.dir, state, pkt)

	switch p := pkt.(type) {
	case *protocol.Intention:
		s.log.Info("Handshake", "protocol_version", p.ProtocolVersion, "server_address", p.ServerAddress, "server_port", p.ServerPort, "intent", p.Intent)
		v := protocol.ProtocolVersion(p.ProtocolVersion)
		if p.Intent == protocol.IntentStatus {
			// status packets are the same in every version
			v = handshakeRegistry.Version()
		}
		next, err := protocol.NewRegistry(v)
		if err != nil {
			s.log.Warn("Unsupported protocol version, relaying without inspection", "protocol_version", p.ProtocolVersion)
			s.opaque.Store(true)
			break
		}
		s.reg.Store(next)
	case *protocol.LoginStart:
		s.log.Info("Login start", "username", p.Username, "uuid", p.UUID.String())
	case *protocol.LoginSuccess:
		s.log.Info("Login success", "username", p.Username, "uuid", p.UUID.String())
	case *protocol.SetCompression:
		s.log.Info("Compression enabled", "threshold", p.Threshold)
		s.cs.SetThreshold(max(int(p.Threshold), -1))
	case *protocol.LoginDisconnect:
		s.log.Info("Disconnected during login", "reason", p.Reason)
	case *protocol.Disconnect:
		s.log.Info("Disconnected", "reason", p.Reason.Text())
	}

	to := s.cs.Observe(rt.dir, pkt)
	if to != from {
		s.log.Info("State changed", "tag", rt.tag, "clientbound", to.Clientbound, "serverbound", to.Serverbound)
		s.bus.Publish(event.EventStateChange, &event.StateChangeEvent{From: from, To: to})
	}
	return raw, state, pkt, nil
}

func (s *session) publish(dir protocol.Direction, state protocol.State, pkt protocol.Packet) {
	if s.bus == nil || !s.bus.HasSubscribers(event.EventPacket) {
		return
	}
	s.bus.Publish(event.EventPacket, &event.PacketEvent{Direction: dir, State: state, Packet: pkt})
}

// pipeOpaque copies the rest of the stream, starting with whatever src has
// buffered.
func pipeOpaque(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if isClosed(err) {
		return nil
	}
	return err
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
