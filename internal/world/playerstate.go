package world

import (
	"fmt"
	"sync"

	"github.com/Versifine/locus/internal/protocol"
)

type Position struct {
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32
}

// PlayerState tracks what the server has told the client about itself.
type PlayerState struct {
	mu               sync.RWMutex
	entityID         int32
	position         Position
	gamemode         uint8
	dimensionName    string
	dimensionType    int32
	seaLevel         int32
	viewDistance     int32
	simulationDist   int32
	viewCenterChunkX int32
	viewCenterChunkZ int32
	spawned          bool
}

type Snapshot struct {
	EntityID           int32
	Position           Position
	Gamemode           uint8
	DimensionName      string
	DimensionType      int32
	SeaLevel           int32
	ViewDistance       int32
	SimulationDistance int32
	ViewCenterChunkX   int32
	ViewCenterChunkZ   int32
	Spawned            bool
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot [Entity: %d] | [Dimension: %s (type %d)] | [Position: (X: %.2f, Y: %.2f, Z: %.2f, Yaw: %.2f, Pitch: %.2f)] | [ViewCenter: (%d, %d) r=%d]",
		s.EntityID,
		s.DimensionName, s.DimensionType,
		s.Position.X, s.Position.Y, s.Position.Z, s.Position.Yaw, s.Position.Pitch,
		s.ViewCenterChunkX, s.ViewCenterChunkZ, s.ViewDistance,
	)
}

func (ps *PlayerState) Snapshot() Snapshot {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return Snapshot{
		EntityID:           ps.entityID,
		Position:           ps.position,
		Gamemode:           ps.gamemode,
		DimensionName:      ps.dimensionName,
		DimensionType:      ps.dimensionType,
		SeaLevel:           ps.seaLevel,
		ViewDistance:       ps.viewDistance,
		SimulationDistance: ps.simulationDist,
		ViewCenterChunkX:   ps.viewCenterChunkX,
		ViewCenterChunkZ:   ps.viewCenterChunkZ,
		Spawned:            ps.spawned,
	}
}

func (ps *PlayerState) ApplyLogin(p *protocol.PlayLogin) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.entityID = p.EntityID
	ps.viewDistance = p.ViewDistance
	ps.simulationDist = p.SimulationDistance
	ps.applySpawn(&p.WorldState)
}

// ApplyRespawn switches dimension. The position is unknown until the next
// teleport arrives.
func (ps *PlayerState) ApplyRespawn(p *protocol.Respawn) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.applySpawn(&p.WorldState)
	ps.spawned = false
}

func (ps *PlayerState) applySpawn(s *protocol.SpawnInfo) {
	ps.gamemode = s.Gamemode
	ps.dimensionName = s.DimensionName
	ps.dimensionType = s.DimensionType
	ps.seaLevel = s.SeaLevel
}

// ApplyTeleport resolves the relative flags of a position packet against the
// current position and returns the result.
func (ps *PlayerState) ApplyTeleport(p *protocol.PlayerPosition) Position {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	cur := ps.position
	x, y, z, yaw, pitch := p.Apply(cur.X, cur.Y, cur.Z, cur.Yaw, cur.Pitch)
	ps.position = Position{X: x, Y: y, Z: z, Yaw: yaw, Pitch: pitch}
	ps.spawned = true
	return ps.position
}

func (ps *PlayerState) UpdateViewCenter(chunkX, chunkZ int32) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.viewCenterChunkX = chunkX
	ps.viewCenterChunkZ = chunkZ
}
