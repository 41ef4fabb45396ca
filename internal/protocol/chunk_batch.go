package protocol

type ChunkBatchStart struct{}

func (*ChunkBatchStart) Kind() PacketKind              { return KindChunkBatchStart }
func (*ChunkBatchStart) Fields(ProtocolVersion) Fields { return nil }

type ChunkBatchFinished struct {
	BatchSize int32
}

func (*ChunkBatchFinished) Kind() PacketKind { return KindChunkBatchFinished }

func (p *ChunkBatchFinished) Fields(ProtocolVersion) Fields {
	return Fields{nonNegative(VarIntField("batch_size", &p.BatchSize), &p.BatchSize)}
}

// ChunkBatchReceived acknowledges a batch and reports the rate the client
// can absorb.
type ChunkBatchReceived struct {
	ChunksPerTick float32
}

func (*ChunkBatchReceived) Kind() PacketKind { return KindChunkBatchReceived }

func (p *ChunkBatchReceived) Fields(ProtocolVersion) Fields {
	return Fields{FloatField("chunks_per_tick", &p.ChunksPerTick)}
}
