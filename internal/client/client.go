// Package client is a headless game client. It logs in, answers the
// configuration exchange and keeps a world store of the chunks the server
// streams to it.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/logger"
	"github.com/Versifine/locus/internal/protocol"
	"github.com/Versifine/locus/internal/world"
	"github.com/google/uuid"
)

// DisconnectError is returned when the server ends the session.
type DisconnectError struct {
	State  protocol.State
	Reason string
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("disconnected during %s: %s", e.State, e.Reason)
}

type Config struct {
	Addr         string
	Username     string
	Version      protocol.ProtocolVersion
	ViewDistance int
	Locale       string
	SkipUnknown  bool
}

type Client struct {
	cfg  Config
	uuid uuid.UUID
	bus  *event.Bus

	blocks *world.Registry
	// reg is blocks sized to the biome registry the server sent.
	reg    atomic.Pointer[world.Registry]
	dims   atomic.Pointer[world.DimensionTable]
	store  *world.Store
	player *world.PlayerState

	batch       batchRate
	loadedSent  atomic.Bool
	configCount atomic.Int32
}

// New creates a client. blocks supplies the block state registry; it may
// be world.FallbackRegistry() when names are not needed.
func New(cfg Config, blocks *world.Registry) *Client {
	c := &Client{
		cfg:    cfg,
		uuid:   protocol.GenerateOfflineUUID(cfg.Username),
		bus:    event.NewBus(),
		blocks: blocks,
		store:  world.NewStore(blocks, nil),
		player: &world.PlayerState{},
	}
	c.reg.Store(blocks)
	c.batch.reset()
	return c
}

func (c *Client) Bus() *event.Bus { return c.bus }
func (c *Client) Store() *world.Store { return c.store }
func (c *Client) State() world.Snapshot { return c.player.Snapshot() }
func (c *Client) Registry() *world.Registry { return c.reg.Load() }
func (c *Client) UUID() uuid.UUID { return c.uuid }
func (c *Client) Version() protocol.ProtocolVersion { return c.cfg.Version }

// Start connects and plays until the server disconnects or ctx is done.
func (c *Client) Start(ctx context.Context) error {
	var opts []conn.Option
	if c.cfg.SkipUnknown {
		opts = append(opts, conn.WithSkipUnknown())
	}
	ctx = logger.WithAttrs(ctx, "server", c.cfg.Addr, "username", c.cfg.Username)
	hs, err := conn.Dial(ctx, c.cfg.Addr, c.cfg.Version, opts...)
	if err != nil {
		return err
	}
	defer hs.Close()
	slog.Info("Connected to server", "address", c.cfg.Addr, "protocol_version", c.cfg.Version)
	return c.run(ctx, hs)
}

func (c *Client) run(ctx context.Context, hs *conn.Handshake) error {
	host, port, err := conn.SplitHostPort(c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}
	lc, err := hs.Login(host, port)
	if err != nil {
		return err
	}
	cc, err := c.login(ctx, lc)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	for {
		pc, err := c.configure(ctx, cc)
		if err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
		if err := c.play(ctx, pc); err != nil {
			return err
		}
		if cc, err = pc.Reconfigure(); err != nil {
			return err
		}
		slog.Info("Server requested reconfiguration")
	}
}

func (c *Client) login(ctx context.Context, lc *conn.LoginConn) (*conn.ConfigConn, error) {
	slog.Info("Starting Login", "username", c.cfg.Username, "uuid", c.uuid.String())
	if err := lc.Start(c.cfg.Username, c.uuid); err != nil {
		return nil, err
	}
	for {
		p, err := lc.Recv(ctx)
		if err != nil {
			return nil, err
		}
		switch p := p.(type) {
		case *protocol.EncryptionRequest:
			if p.ShouldAuthenticate {
				slog.Warn("Server requires authentication, continuing without a session")
			}
			if err := lc.Encrypt(p); err != nil {
				return nil, err
			}
			slog.Info("Encryption enabled")
		case *protocol.SetCompression:
			slog.Info("Compression enabled", "threshold", p.Threshold)
		case *protocol.LoginPluginRequest:
			// no plugin channels are understood
			if err := lc.Send(&protocol.LoginPluginResponse{MessageID: p.MessageID}); err != nil {
				return nil, err
			}
		case *protocol.CookieRequest:
			if err := lc.Send(&protocol.CookieResponse{Key: p.Key}); err != nil {
				return nil, err
			}
		case *protocol.LoginDisconnect:
			c.publishDisconnect(p.Reason)
			return nil, &DisconnectError{State: protocol.Login, Reason: p.Reason}
		case *protocol.LoginSuccess:
			c.uuid = p.UUID
			slog.Info("Login successful", "username", p.Username, "uuid", p.UUID.String())
			return lc.Acknowledge()
		default:
			slog.Debug("Unhandled packet in Login state", "packet", p.Kind())
		}
	}
}

func (c *Client) publishDisconnect(reason string) {
	slog.Warn("Disconnected by server", "reason", reason)
	c.bus.Publish(event.EventDisconnect, &event.DisconnectEvent{Reason: reason})
}
