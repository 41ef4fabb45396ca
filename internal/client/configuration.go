package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/protocol"
	"github.com/Versifine/locus/internal/world"
)

func (c *Client) clientInformation() *protocol.ClientInformation {
	return &protocol.ClientInformation{
		Locale:              c.cfg.Locale,
		ViewDistance:        int8(c.cfg.ViewDistance),
		ChatMode:            protocol.ChatModeEnabled,
		ChatColors:          true,
		SkinParts:           protocol.AllSkinParts,
		MainHand:            protocol.MainHandRight,
		EnableServerListing: true,
		ParticleStatus:      protocol.ParticlesMinimal,
	}
}

// configure runs one configuration phase and returns once the client has
// acknowledged FinishConfiguration.
func (c *Client) configure(ctx context.Context, cc *conn.ConfigConn) (*conn.PlayConn, error) {
	slog.Info("Starting Configuration", "state", protocol.Configuration)
	if c.configCount.Add(1) == 1 {
		if err := cc.Send(c.clientInformation()); err != nil {
			return nil, err
		}
	}
	for {
		p, err := cc.Recv(ctx)
		if err != nil {
			return nil, err
		}
		switch p := p.(type) {
		case *protocol.KeepAlive:
			if err := cc.Send(&protocol.KeepAlive{KeepAliveID: p.KeepAliveID}); err != nil {
				return nil, err
			}
		case *protocol.ConfigPing:
			if err := cc.Send(&protocol.ConfigPong{ID: p.ID}); err != nil {
				return nil, err
			}
		case *protocol.SelectKnownPacks:
			// Claiming no packs makes the server send every registry entry
			// with its data.
			slog.Debug("Server offered known packs", "count", len(p.Packs))
			if err := cc.Send(&protocol.SelectKnownPacks{}); err != nil {
				return nil, err
			}
		case *protocol.RegistryData:
			if err := c.applyRegistryData(p); err != nil {
				return nil, err
			}
		case *protocol.UpdateEnabledFeatures:
			slog.Debug("Enabled features", "features", p.Features)
		case *protocol.Disconnect:
			reason := p.Reason.Text()
			c.publishDisconnect(reason)
			return nil, &DisconnectError{State: protocol.Configuration, Reason: reason}
		case *protocol.FinishConfiguration:
			return cc.Finish()
		default:
			slog.Debug("Unhandled packet in Configuration state", "packet", p.Kind())
		}
	}
}

// applyRegistryData keeps the two registries chunk decoding depends on: the
// biome count sizes biome containers, and dimension types give world bounds.
func (c *Client) applyRegistryData(p *protocol.RegistryData) error {
	switch p.RegistryID {
	case world.BiomeRegistry:
		c.reg.Store(c.blocks.WithBiomes(len(p.Entries)))
		slog.Debug("Biome registry received", "count", len(p.Entries))
	case world.DimensionTypeRegistry:
		dims, err := world.ParseDimensionTypes(p)
		if err != nil {
			return fmt.Errorf("dimension types: %w", err)
		}
		c.dims.Store(dims)
		slog.Debug("Dimension types received", "count", dims.Len())
	}
	c.bus.Publish(event.EventRegistryData, &event.RegistryDataEvent{RegistryID: p.RegistryID, Entries: len(p.Entries)})
	return nil
}
