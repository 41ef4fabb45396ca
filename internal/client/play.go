package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Versifine/locus/internal/chunk"
	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/protocol"
	"github.com/Versifine/locus/internal/world"
)

// play handles packets until the server starts reconfiguration, which
// returns nil.
func (c *Client) play(ctx context.Context, pc *conn.PlayConn) error {
	slog.Info("Starting Play", "state", protocol.Play)
	return pc.Run(ctx, func(ctx context.Context, p protocol.Packet) error {
		return c.handlePlay(pc, p)
	})
}

func (c *Client) handlePlay(pc *conn.PlayConn, p protocol.Packet) error {
	switch p := p.(type) {
	case *protocol.KeepAlive:
		return pc.Send(&protocol.KeepAlive{KeepAliveID: p.KeepAliveID})
	case *protocol.PlayLogin:
		c.player.ApplyLogin(p)
		return c.spawn(&p.WorldState)
	case *protocol.Respawn:
		c.player.ApplyRespawn(p)
		c.loadedSent.Store(false)
		return c.spawn(&p.WorldState)
	case *protocol.PlayerPosition:
		return c.handleTeleport(pc, p)
	case *protocol.SetChunkCacheCenter:
		c.player.UpdateViewCenter(p.ChunkX, p.ChunkZ)
	case *protocol.LevelChunkWithLight:
		c.handleChunk(p)
	case *protocol.ForgetLevelChunk:
		if c.store.Unload(p.ChunkX, p.ChunkZ) {
			c.batch.noteUnload()
			c.bus.Publish(event.EventChunkUnload, &event.ChunkUnloadEvent{X: p.ChunkX, Z: p.ChunkZ})
		}
	case *protocol.BlockUpdate:
		if c.applyUpdate("block update", c.store.ApplyBlockUpdate(p)) {
			c.bus.Publish(event.EventBlockChange, &event.BlockChangeEvent{Pos: p.Pos, State: p.StateID})
		}
	case *protocol.SectionBlocksUpdate:
		if c.applyUpdate("section update", c.store.ApplySectionUpdate(p)) {
			for _, rec := range p.Records {
				c.bus.Publish(event.EventBlockChange, &event.BlockChangeEvent{Pos: p.Section.World(rec), State: rec.StateID})
			}
		}
	case *protocol.BlockEntityData:
		c.applyUpdate("block entity", c.store.UpdateBlockEntity(p))
	case *protocol.ChunkBatchStart:
		c.batch.start()
	case *protocol.ChunkBatchFinished:
		rate, loads, unloads := c.batch.finish(p.BatchSize)
		if err := pc.Send(&protocol.ChunkBatchReceived{ChunksPerTick: rate}); err != nil {
			return err
		}
		slog.Debug("Chunk batch received", "batch_size", p.BatchSize, "chunks_per_tick", rate,
			"load_events", loads, "unload_events", unloads, "loaded_chunks", c.store.LoadedChunkCount())
		c.bus.Publish(event.EventChunkBatch, &event.ChunkBatchEvent{Size: p.BatchSize, ChunksPerTick: rate})
	case *protocol.SystemChat:
		c.bus.Publish(event.EventChat, event.NewChatEvent(p.Content.Text(), p.IsActionBar))
	case *protocol.Disconnect:
		reason := p.Reason.Text()
		c.publishDisconnect(reason)
		return &DisconnectError{State: protocol.Play, Reason: reason}
	case *protocol.StartConfiguration:
		// Run returns after this packet.
	default:
		slog.Debug("Unhandled packet in Play state", "packet", p.Kind())
	}
	return nil
}

// spawn switches the world store to the layout of the dimension entered.
func (c *Client) spawn(info *protocol.SpawnInfo) error {
	bounds, ok := c.dims.Load().Resolve(info.DimensionType, info.DimensionName)
	if !ok {
		return fmt.Errorf("unknown dimension type %d (%s)", info.DimensionType, info.DimensionName)
	}
	asm, err := chunk.NewAssembler(c.reg.Load(), c.cfg.Version, bounds.MinY, bounds.Height)
	if err != nil {
		return fmt.Errorf("dimension %s: %w", info.DimensionName, err)
	}
	c.store.Reset(asm)
	slog.Info("Entered dimension", "dimension", info.DimensionName, "min_y", bounds.MinY, "height", bounds.Height)
	c.bus.Publish(event.EventSpawn, &event.SpawnEvent{Dimension: info.DimensionName, MinY: bounds.MinY, Height: bounds.Height})
	return nil
}

func (c *Client) handleTeleport(pc *conn.PlayConn, p *protocol.PlayerPosition) error {
	pos := c.player.ApplyTeleport(p)
	if err := pc.Send(&protocol.AcceptTeleportation{TeleportID: p.TeleportID}); err != nil {
		return err
	}
	slog.Debug("Teleported", "x", pos.X, "y", pos.Y, "z", pos.Z, "teleport_id", p.TeleportID)
	if c.cfg.Version.HasPlayerLoaded() && c.loadedSent.CompareAndSwap(false, true) {
		return pc.Send(&protocol.PlayerLoaded{})
	}
	return nil
}

func (c *Client) handleChunk(p *protocol.LevelChunkWithLight) {
	col, err := c.store.LoadChunk(p)
	if err != nil {
		slog.Warn("Failed to load chunk", "chunk_x", p.ChunkX, "chunk_z", p.ChunkZ, "error", err)
		return
	}
	c.batch.noteLoad()
	c.bus.Publish(event.EventChunkLoad, &event.ChunkLoadEvent{X: col.X, Z: col.Z, Chunk: col})
}

// applyUpdate reports whether a block change was stored. Updates for
// columns that are not loaded are expected while the view moves.
func (c *Client) applyUpdate(what string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, world.ErrChunkNotLoaded):
		slog.Debug("Ignoring update outside loaded chunks", "update", what, "error", err)
	default:
		slog.Warn("Failed to apply update", "update", what, "error", err)
	}
	return false
}
