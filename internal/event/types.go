package event

import (
	"github.com/Versifine/locus/internal/chunk"
	"github.com/Versifine/locus/internal/protocol"
)

const (
	EventPacket       = "packet"
	EventStateChange  = "state.change"
	EventChunkLoad    = "chunk.load"
	EventChunkUnload  = "chunk.unload"
	EventBlockChange  = "block.change"
	EventSpawn        = "player.spawn"
	EventDisconnect   = "disconnect"
	EventChat         = "chat"
	EventChunkBatch   = "chunk.batch"
	EventRegistryData = "registry.data"
)

// PacketEvent is published for every decoded packet before it is handled.
type PacketEvent struct {
	Direction protocol.Direction
	State     protocol.State
	Packet    protocol.Packet
}

type StateChangeEvent struct {
	From protocol.Streams
	To   protocol.Streams
}

// ChunkLoadEvent carries the published snapshot of a column. Subscribers
// must not modify it.
type ChunkLoadEvent struct {
	X, Z  int32
	Chunk *chunk.Chunk
}

type ChunkUnloadEvent struct {
	X, Z int32
}

type BlockChangeEvent struct {
	Pos   protocol.BlockPos
	State int32
}

type SpawnEvent struct {
	Dimension string
	MinY      int
	Height    int
}

type DisconnectEvent struct {
	Reason string
}

type ChunkBatchEvent struct {
	Size          int32
	ChunksPerTick float32
}

type RegistryDataEvent struct {
	RegistryID string
	Entries    int
}
