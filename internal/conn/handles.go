package conn

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/Versifine/locus/internal/protocol"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// handle restricts a Conn to one state. It is spent by the call that moves
// the connection on; every later call fails with ErrWrongState.
type handle struct {
	c     *Conn
	state protocol.State
	spent atomic.Bool
}

func newHandle(c *Conn, state protocol.State) *handle {
	return &handle{c: c, state: state}
}

func (h *handle) check() error {
	if h.spent.Load() {
		return fmt.Errorf("%w: %s handle is spent", protocol.ErrWrongState, h.state)
	}
	return nil
}

// leave spends the handle once the stream read by this end has already
// reached next.
func (h *handle) leave(next protocol.State) error {
	if got := h.c.state(h.c.out.Opposite()); got != next {
		return fmt.Errorf("%w: peer is still in %s", protocol.ErrWrongState, got)
	}
	if !h.spent.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s handle is spent", protocol.ErrWrongState, h.state)
	}
	return nil
}

func (h *handle) Send(p protocol.Packet) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.c.Send(p)
}

func (h *handle) Recv(ctx context.Context) (protocol.Packet, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.c.Recv(ctx)
}

func (h *handle) Conn() *Conn  { return h.c }
func (h *handle) Close() error { return h.c.Close() }

// Handshake is a fresh client connection.
type Handshake struct{ *handle }

func NewHandshake(c *Conn) *Handshake {
	return &Handshake{newHandle(c, protocol.Handshaking)}
}

// Dial connects to addr and returns the connection in the handshake state.
func Dial(ctx context.Context, addr string, v protocol.ProtocolVersion, opts ...Option) (*Handshake, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := nc.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	c, err := NewClient(nc, v, opts...)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	return NewHandshake(c), nil
}

func (h *Handshake) intend(host string, port uint16, intent protocol.Intent) error {
	if !h.spent.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: handshake already sent", protocol.ErrWrongState)
	}
	return h.c.Send(&protocol.Intention{
		ProtocolVersion: int32(h.c.Version()),
		ServerAddress:   host,
		ServerPort:      port,
		Intent:          intent,
	})
}

func (h *Handshake) Status(host string, port uint16) (*StatusConn, error) {
	if err := h.intend(host, port, protocol.IntentStatus); err != nil {
		return nil, err
	}
	return &StatusConn{newHandle(h.c, protocol.Status)}, nil
}

func (h *Handshake) Login(host string, port uint16) (*LoginConn, error) {
	if err := h.intend(host, port, protocol.IntentLogin); err != nil {
		return nil, err
	}
	return &LoginConn{newHandle(h.c, protocol.Login)}, nil
}

// LoginConn is a client connection in the login state. SetCompression is
// applied by Recv as it arrives.
type LoginConn struct{ *handle }

func (l *LoginConn) Start(username string, id uuid.UUID) error {
	return l.Send(&protocol.LoginStart{Username: username, UUID: id})
}

// Encrypt answers an EncryptionRequest and switches both directions to the
// new cipher.
func (l *LoginConn) Encrypt(req *protocol.EncryptionRequest) error {
	if err := l.check(); err != nil {
		return err
	}
	secret, err := protocol.NewSharedSecret()
	if err != nil {
		return err
	}
	resp, err := protocol.EncryptForServer(req, secret)
	if err != nil {
		return err
	}
	if err := l.c.Send(resp); err != nil {
		return err
	}
	return l.c.EnableEncryption(secret)
}

// Acknowledge confirms LoginSuccess and enters configuration.
func (l *LoginConn) Acknowledge() (*ConfigConn, error) {
	if err := l.leave(protocol.Configuration); err != nil {
		return nil, err
	}
	if err := l.c.Send(&protocol.LoginAcknowledged{}); err != nil {
		return nil, err
	}
	return &ConfigConn{newHandle(l.c, protocol.Configuration)}, nil
}

type ConfigConn struct{ *handle }

// Finish acknowledges FinishConfiguration and enters play.
func (cc *ConfigConn) Finish() (*PlayConn, error) {
	if err := cc.leave(protocol.Play); err != nil {
		return nil, err
	}
	if err := cc.c.Send(&protocol.FinishConfiguration{}); err != nil {
		return nil, err
	}
	return &PlayConn{newHandle(cc.c, protocol.Play)}, nil
}

type PlayConn struct{ *handle }

// Reconfigure acknowledges StartConfiguration and returns to configuration.
func (pc *PlayConn) Reconfigure() (*ConfigConn, error) {
	if err := pc.leave(protocol.Configuration); err != nil {
		return nil, err
	}
	if err := pc.c.Send(&protocol.ConfigurationAcknowledged{}); err != nil {
		return nil, err
	}
	return &ConfigConn{newHandle(pc.c, protocol.Configuration)}, nil
}

// Handler is called for each play packet, in arrival order.
type Handler func(ctx context.Context, p protocol.Packet) error

// Run reads packets on one goroutine and hands them to h on another.
//
// It returns nil after h has handled StartConfiguration; the caller then
// continues with Reconfigure. Any other exit, including a cancelled ctx,
// closes the connection.
func (pc *PlayConn) Run(ctx context.Context, h Handler) error {
	if err := pc.check(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	packets := make(chan protocol.Packet, 64)

	g.Go(func() error {
		defer close(packets)
		for {
			p, err := pc.c.Recv(gctx)
			if err != nil {
				return err
			}
			select {
			case packets <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
			if p.Kind() == protocol.KindStartConfiguration {
				return nil
			}
		}
	})
	g.Go(func() error {
		for p := range packets {
			if err := h(gctx, p); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		_ = pc.c.Close()
		return err
	}
	return nil
}
