// Package conn drives a protocol connection through its states. A Conn owns
// the transport and tracks both stream states; the typed handles in this
// package only expose the operations valid in one state.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/Versifine/locus/internal/logger"
	"github.com/Versifine/locus/internal/protocol"
)

// Conn is one end of a connection. Recv must be called from a single
// goroutine; Send is safe for concurrent use.
type Conn struct {
	nc  net.Conn
	reg *protocol.Registry
	// out is the direction of packets written by this end.
	out protocol.Direction

	fr *protocol.FrameReader
	fw *protocol.FrameWriter

	sendMu  sync.Mutex
	mu      sync.Mutex
	streams protocol.Streams

	skipUnknown bool

	closeOnce sync.Once
	closeErr  error
}

type Option func(*Conn)

// WithSkipUnknown makes Recv drop packets outside the catalog in the
// configuration and play states instead of failing. Earlier states stay
// strict.
func WithSkipUnknown() Option {
	return func(c *Conn) { c.skipUnknown = true }
}

func newConn(nc net.Conn, v protocol.ProtocolVersion, out protocol.Direction, opts ...Option) (*Conn, error) {
	reg, err := protocol.NewRegistry(v)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		nc:  nc,
		reg: reg,
		out: out,
		fr:  protocol.NewFrameReader(nc),
		fw:  protocol.NewFrameWriter(nc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClient wraps a transport dialed to a server.
func NewClient(nc net.Conn, v protocol.ProtocolVersion, opts ...Option) (*Conn, error) {
	return newConn(nc, v, protocol.Serverbound, opts...)
}

// NewServer wraps a transport accepted from a client.
func NewServer(nc net.Conn, v protocol.ProtocolVersion, opts ...Option) (*Conn, error) {
	return newConn(nc, v, protocol.Clientbound, opts...)
}

func (c *Conn) Version() protocol.ProtocolVersion { return c.reg.Version() }

func (c *Conn) Registry() *protocol.Registry { return c.reg }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *Conn) Streams() protocol.Streams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams
}

func (c *Conn) state(dir protocol.Direction) protocol.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams.Get(dir)
}

func (c *Conn) observe(dir protocol.Direction, p protocol.Packet) protocol.Streams {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = c.streams.After(dir, p)
	return c.streams
}

// Send encodes p for the current outgoing state and writes it as one frame.
// State transitions and SetCompression take effect after the frame is out.
func (c *Conn) Send(p protocol.Packet) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	state := c.state(c.out)
	raw, err := c.reg.Encode(state, c.out, p)
	if err != nil {
		return err
	}
	if err := c.fw.WritePacket(raw); err != nil {
		return c.transportErr(err)
	}
	slog.Debug("Sent packet", "packet", p.Kind(), logger.Packet(state, c.out, raw.ID))

	if sc, ok := p.(*protocol.SetCompression); ok {
		c.setThreshold(int(sc.Threshold))
	}
	c.observe(c.out, p)
	return nil
}

// Recv reads and decodes the next packet. It blocks until a whole frame has
// arrived. A partially read frame cannot be resumed, so cancelling ctx
// closes the connection.
func (c *Conn) Recv(ctx context.Context) (protocol.Packet, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	in := c.out.Opposite()
	for {
		raw, err := c.fr.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, c.transportErr(err)
		}
		state := c.state(in)
		p, err := c.reg.Decode(state, in, raw)
		if err != nil {
			var unknown *protocol.UnknownPacketError
			if c.skipUnknown && errors.As(err, &unknown) && state >= protocol.Configuration {
				logger.FromContext(ctx).Debug("Skipping unknown packet", logger.Packet(state, in, raw.ID))
				continue
			}
			return nil, err
		}
		logger.FromContext(ctx).Debug("Received packet", "packet", p.Kind(), logger.Packet(state, in, raw.ID))

		if sc, ok := p.(*protocol.SetCompression); ok {
			c.setThreshold(int(sc.Threshold))
		}
		c.observe(in, p)
		return p, nil
	}
}

func (c *Conn) setThreshold(t int) {
	if t < 0 {
		t = -1
	}
	c.fr.SetThreshold(t)
	c.fw.SetThreshold(t)
}

// EnableEncryption switches both directions to AES/CFB8 with secret. It must
// be called between packets: the client calls it right after sending
// EncryptionResponse, the server right after reading it.
func (c *Conn) EnableEncryption(secret []byte) error {
	enc, dec, err := protocol.NewCipherStreams(secret)
	if err != nil {
		return err
	}
	c.fw.EnableEncryption(enc)
	c.fr.EnableDecryption(dec)
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

func (c *Conn) transportErr(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %w", protocol.ErrConnClosed, err)
	}
	return err
}
