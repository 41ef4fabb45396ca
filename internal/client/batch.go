package client

import (
	"sync"
	"time"
)

const (
	// tickBudget is the share of a 50ms tick the client is willing to spend
	// on incoming chunks.
	tickBudget = 7 * time.Millisecond

	initialNanosPerChunk = 2_000_000
	maxBatchSamples      = 49
	maxChunksPerTick     = 64
	minChunksPerTick     = 0.01
)

// batchRate estimates how fast chunks are absorbed and turns it into the
// rate reported back in ChunkBatchReceived.
type batchRate struct {
	mu            sync.Mutex
	started       time.Time
	nanosPerChunk float64
	samples       int

	loads, unloads int
}

func (b *batchRate) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = time.Time{}
	b.nanosPerChunk = initialNanosPerChunk
	b.samples = 1
	b.loads, b.unloads = 0, 0
}

func (b *batchRate) start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = time.Now()
	b.loads, b.unloads = 0, 0
}

func (b *batchRate) noteLoad() {
	b.mu.Lock()
	b.loads++
	b.mu.Unlock()
}

func (b *batchRate) noteUnload() {
	b.mu.Lock()
	b.unloads++
	b.mu.Unlock()
}

// finish folds the batch into a running average and returns chunks per
// tick with the load and unload counts seen since the batch started. A
// batch without a start packet leaves the average untouched.
func (b *batchRate) finish(size int32) (rate float32, loads, unloads int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started.IsZero() && size > 0 {
		perChunk := float64(time.Since(b.started).Nanoseconds()) / float64(size)
		n := float64(b.samples)
		b.nanosPerChunk = (b.nanosPerChunk*n + perChunk) / (n + 1)
		b.samples = min(b.samples+1, maxBatchSamples)
	}
	b.started = time.Time{}
	loads, unloads = b.loads, b.unloads
	b.loads, b.unloads = 0, 0
	r := float64(tickBudget.Nanoseconds()) / max(b.nanosPerChunk, 1)
	return float32(min(max(r, minChunksPerTick), maxChunksPerTick)), loads, unloads
}
