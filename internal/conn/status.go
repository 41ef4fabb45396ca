package conn

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Versifine/locus/internal/protocol"
)

type StatusConn struct{ *handle }

// Request asks for the server list document.
func (s *StatusConn) Request(ctx context.Context) (*protocol.ServerStatus, error) {
	if err := s.Send(&protocol.StatusRequest{}); err != nil {
		return nil, err
	}
	p, err := s.Recv(ctx)
	if err != nil {
		return nil, err
	}
	resp, ok := p.(*protocol.StatusResponse)
	if !ok {
		return nil, unexpected(p, protocol.KindStatusResponse)
	}
	return resp.Status()
}

// Ping measures one ping/pong round trip.
func (s *StatusConn) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	payload := start.UnixMilli()
	if err := s.Send(&protocol.PingRequest{Payload: payload}); err != nil {
		return 0, err
	}
	p, err := s.Recv(ctx)
	if err != nil {
		return 0, err
	}
	pong, ok := p.(*protocol.PongResponse)
	if !ok {
		return 0, unexpected(p, protocol.KindPongResponse)
	}
	if pong.Payload != payload {
		return 0, fmt.Errorf("%w: pong payload %d, want %d", protocol.ErrInvalidPacket, pong.Payload, payload)
	}
	return time.Since(start), nil
}

type PingResult struct {
	Status  *protocol.ServerStatus
	Latency time.Duration
}

// Ping queries the server list entry of addr.
func Ping(ctx context.Context, addr string, v protocol.ProtocolVersion) (*PingResult, error) {
	host, port, err := SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	hs, err := Dial(ctx, addr, v)
	if err != nil {
		return nil, err
	}
	defer hs.Close()

	sc, err := hs.Status(host, port)
	if err != nil {
		return nil, err
	}
	status, err := sc.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	latency, err := sc.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PingResult{Status: status, Latency: latency}, nil
}

// SplitHostPort splits a server address into the handshake host and port.
func SplitHostPort(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid server address: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid server port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}

func unexpected(p protocol.Packet, want protocol.PacketKind) error {
	return fmt.Errorf("%w: got %s, want %s", protocol.ErrInvalidPacket, p.Kind(), want)
}
