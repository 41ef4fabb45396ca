package world

import (
	"strings"
	"testing"

	"github.com/Versifine/locus/internal/protocol"
)

func TestPlayerStateLoginAndTeleport(t *testing.T) {
	ps := &PlayerState{}
	ps.ApplyLogin(&protocol.PlayLogin{
		EntityID:           42,
		ViewDistance:       10,
		SimulationDistance: 8,
		WorldState: protocol.SpawnInfo{
			DimensionType: 0,
			DimensionName: DimensionOverworld,
			Gamemode:      1,
			SeaLevel:      63,
		},
	})

	snap := ps.Snapshot()
	if snap.EntityID != 42 || snap.DimensionName != DimensionOverworld || snap.SeaLevel != 63 || snap.Spawned {
		t.Fatalf("snapshot after login = %+v", snap)
	}

	got := ps.ApplyTeleport(&protocol.PlayerPosition{X: 10, Y: 64, Z: -5, Yaw: 90})
	want := Position{X: 10, Y: 64, Z: -5, Yaw: 90}
	if got != want {
		t.Fatalf("ApplyTeleport = %+v, want %+v", got, want)
	}

	got = ps.ApplyTeleport(&protocol.PlayerPosition{X: 1, Y: 2, Z: 3, Flags: protocol.RelX | protocol.RelY})
	want = Position{X: 11, Y: 66, Z: 3}
	if got != want {
		t.Fatalf("relative ApplyTeleport = %+v, want %+v", got, want)
	}
	if !ps.Snapshot().Spawned {
		t.Fatal("teleport should mark the player spawned")
	}
}

func TestPlayerStateRespawn(t *testing.T) {
	ps := &PlayerState{}
	ps.ApplyTeleport(&protocol.PlayerPosition{X: 1})
	ps.ApplyRespawn(&protocol.Respawn{WorldState: protocol.SpawnInfo{DimensionType: 1, DimensionName: DimensionNether}})

	snap := ps.Snapshot()
	if snap.DimensionName != DimensionNether || snap.DimensionType != 1 {
		t.Fatalf("dimension = %s (%d)", snap.DimensionName, snap.DimensionType)
	}
	if snap.Spawned {
		t.Fatal("respawn should wait for the next teleport")
	}
}

func TestSnapshotString(t *testing.T) {
	ps := &PlayerState{}
	ps.UpdateViewCenter(-3, 7)
	got := ps.Snapshot().String()
	if !strings.Contains(got, "ViewCenter: (-3, 7)") {
		t.Fatalf("Snapshot.String() = %q, want contains %q", got, "ViewCenter: (-3, 7)")
	}
}
