package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Versifine/locus/internal/chunk"
	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/protocol"
	"github.com/Versifine/locus/internal/world"
)

const (
	stateAir   = 0
	stateStone = 1
	testBiomes = 4
)

func testBlocks(t *testing.T) *world.Registry {
	t.Helper()
	reg, err := world.NewRegistry([]world.BlockDef{
		{Name: "air", DisplayName: "Air", MinStateID: 0, MaxStateID: 0, BoundingBox: "empty"},
		{Name: "stone", DisplayName: "Stone", MinStateID: 1, MaxStateID: 1, BoundingBox: "block"},
	}, world.DefaultBiomeCount)
	if err != nil {
		t.Fatalf("NewRegistry 返回错误: %v", err)
	}
	return reg
}

// fakeServer runs script against the server end of a pipe while the client
// runs against the other end.
func fakeServer(t *testing.T, v protocol.ProtocolVersion, script func(ctx context.Context, s *conn.Conn) error) (*conn.Handshake, <-chan error) {
	t.Helper()
	cp, sp := net.Pipe()
	cc, err := conn.NewClient(cp, v, conn.WithSkipUnknown())
	if err != nil {
		t.Fatal(err)
	}
	sc, err := conn.NewServer(sp, v)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = cc.Close()
		_ = sc.Close()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- script(ctx, sc) }()
	return conn.NewHandshake(cc), done
}

func expect[T protocol.Packet](ctx context.Context, c *conn.Conn) (T, error) {
	var zero T
	p, err := c.Recv(ctx)
	if err != nil {
		return zero, err
	}
	got, ok := p.(T)
	if !ok {
		return zero, errors.New("unexpected packet " + string(p.Kind()))
	}
	return got, nil
}

func serverLogin(ctx context.Context, s *conn.Conn) error {
	if _, err := expect[*protocol.Intention](ctx, s); err != nil {
		return err
	}
	if _, err := expect[*protocol.LoginStart](ctx, s); err != nil {
		return err
	}
	if err := s.Send(&protocol.SetCompression{Threshold: 128}); err != nil {
		return err
	}
	if err := s.Send(&protocol.LoginSuccess{UUID: protocol.GenerateOfflineUUID("Locus"), Username: "Locus"}); err != nil {
		return err
	}
	_, err := expect[*protocol.LoginAcknowledged](ctx, s)
	return err
}

func dimensionRegistry() (*protocol.RegistryData, error) {
	data, err := protocol.EncodeNBT(struct {
		MinY   int32 `nbt:"min_y"`
		Height int32 `nbt:"height"`
	}{MinY: 0, Height: 128})
	if err != nil {
		return nil, err
	}
	return &protocol.RegistryData{
		RegistryID: world.DimensionTypeRegistry,
		Entries: []protocol.RegistryEntry{
			{ID: world.DimensionOverworld},
			{ID: "locus:flat", Data: &data},
		},
	}, nil
}

func biomeRegistry() *protocol.RegistryData {
	p := &protocol.RegistryData{RegistryID: world.BiomeRegistry}
	for _, id := range []string{"minecraft:plains", "minecraft:desert", "minecraft:forest", "minecraft:ocean"} {
		p.Entries = append(p.Entries, protocol.RegistryEntry{ID: id})
	}
	return p
}

type recorder struct {
	mu     sync.Mutex
	loads  int
	chat   []string
	spawns []event.SpawnEvent
	blocks []event.BlockChangeEvent
}

func (r *recorder) attach(bus *event.Bus) {
	bus.Subscribe(event.EventChunkLoad, func(any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.loads++
	})
	bus.Subscribe(event.EventChat, func(raw any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.chat = append(r.chat, raw.(*event.ChatEvent).Message)
	})
	bus.Subscribe(event.EventSpawn, func(raw any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.spawns = append(r.spawns, *raw.(*event.SpawnEvent))
	})
	bus.Subscribe(event.EventBlockChange, func(raw any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.blocks = append(r.blocks, *raw.(*event.BlockChangeEvent))
	})
}

func TestClientSession(t *testing.T) {
	for _, v := range protocol.SupportedVersions() {
		t.Run(v.String(), func(t *testing.T) {
			testClientSession(t, v)
		})
	}
}

func testClientSession(t *testing.T, v protocol.ProtocolVersion) {
	blocks := testBlocks(t)
	asm, err := chunk.NewAssembler(blocks.WithBiomes(testBiomes), v, 0, 128)
	if err != nil {
		t.Fatal(err)
	}
	col := asm.EmptyChunk(0, 0, stateAir, 0)
	if _, err := asm.SetBlock(col, protocol.BlockPos{X: 1, Y: 5, Z: 1}, stateStone); err != nil {
		t.Fatal(err)
	}
	chunkPacket, err := asm.Encode(col)
	if err != nil {
		t.Fatal(err)
	}
	dims, err := dimensionRegistry()
	if err != nil {
		t.Fatal(err)
	}

	hs, done := fakeServer(t, v, func(ctx context.Context, s *conn.Conn) error {
		if err := serverLogin(ctx, s); err != nil {
			return err
		}
		info, err := expect[*protocol.ClientInformation](ctx, s)
		if err != nil {
			return err
		}
		if info.Locale != "en_us" || info.ViewDistance != 8 {
			return errors.New("client information does not match config")
		}
		if err := s.Send(&protocol.SelectKnownPacks{Packs: []protocol.KnownPack{{Namespace: "minecraft", ID: "core", Version: v.String()}}}); err != nil {
			return err
		}
		if packs, err := expect[*protocol.SelectKnownPacks](ctx, s); err != nil || len(packs.Packs) != 0 {
			return errors.New("client should claim no known packs")
		}
		for _, p := range []protocol.Packet{dims, biomeRegistry(), &protocol.ConfigPing{ID: 5}} {
			if err := s.Send(p); err != nil {
				return err
			}
		}
		if pong, err := expect[*protocol.ConfigPong](ctx, s); err != nil || pong.ID != 5 {
			return errors.New("config ping not answered")
		}
		if err := s.Send(&protocol.FinishConfiguration{}); err != nil {
			return err
		}
		if _, err := expect[*protocol.FinishConfiguration](ctx, s); err != nil {
			return err
		}

		login := &protocol.PlayLogin{
			EntityID:           42,
			WorldNames:         []string{"locus:flat"},
			ViewDistance:       8,
			SimulationDistance: 8,
			WorldState:         protocol.SpawnInfo{DimensionType: 1, DimensionName: "locus:flat", SeaLevel: 63},
		}
		for _, p := range []protocol.Packet{
			login,
			&protocol.ChunkBatchStart{},
			chunkPacket,
			&protocol.ChunkBatchFinished{BatchSize: 1},
			&protocol.PlayerPosition{TeleportID: 3, X: 1.5, Y: 6, Z: 1.5},
		} {
			if err := s.Send(p); err != nil {
				return err
			}
		}
		ack, err := expect[*protocol.ChunkBatchReceived](ctx, s)
		if err != nil {
			return err
		}
		if ack.ChunksPerTick <= 0 {
			return errors.New("chunks per tick must be positive")
		}
		if tp, err := expect[*protocol.AcceptTeleportation](ctx, s); err != nil || tp.TeleportID != 3 {
			return errors.New("teleport not accepted")
		}
		if v.HasPlayerLoaded() {
			if _, err := expect[*protocol.PlayerLoaded](ctx, s); err != nil {
				return err
			}
		}

		for _, p := range []protocol.Packet{
			&protocol.BlockUpdate{Pos: protocol.BlockPos{X: 2, Y: 5, Z: 2}, StateID: stateStone},
			&protocol.BlockUpdate{Pos: protocol.BlockPos{X: 100, Y: 5, Z: 100}, StateID: stateStone},
			&protocol.SystemChat{Content: protocol.NewTextComponent("hello")},
			&protocol.KeepAlive{KeepAliveID: 77},
		} {
			if err := s.Send(p); err != nil {
				return err
			}
		}
		if ka, err := expect[*protocol.KeepAlive](ctx, s); err != nil || ka.KeepAliveID != 77 {
			return errors.New("play keep alive not echoed")
		}

		if err := s.Send(&protocol.StartConfiguration{}); err != nil {
			return err
		}
		if _, err := expect[*protocol.ConfigurationAcknowledged](ctx, s); err != nil {
			return err
		}
		if err := s.Send(&protocol.KeepAlive{KeepAliveID: 8}); err != nil {
			return err
		}
		if ka, err := expect[*protocol.KeepAlive](ctx, s); err != nil || ka.KeepAliveID != 8 {
			return errors.New("configuration keep alive not echoed")
		}
		return s.Send(&protocol.Disconnect{Reason: protocol.NewTextComponent("bye")})
	})

	c := New(Config{Addr: "localhost:25565", Username: "Locus", Version: v, ViewDistance: 8, Locale: "en_us"}, blocks)
	var rec recorder
	rec.attach(c.Bus())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.run(ctx, hs)
	var de *DisconnectError
	if !errors.As(err, &de) {
		t.Fatalf("run 返回 %v, 期望 DisconnectError", err)
	}
	if de.State != protocol.Configuration || de.Reason != "bye" {
		t.Errorf("断开 = %+v, 期望配置阶段的 bye", de)
	}
	if err := <-done; err != nil {
		t.Fatalf("服务端脚本失败: %v", err)
	}

	if got := c.Registry().BiomeCount(); got != testBiomes {
		t.Errorf("BiomeCount = %d, 期望 %d", got, testBiomes)
	}
	store := c.Store()
	if got := store.Assembler().MinY(); got != 0 {
		t.Errorf("MinY = %d, 期望 0", got)
	}
	for _, pos := range []protocol.BlockPos{{X: 1, Y: 5, Z: 1}, {X: 2, Y: 5, Z: 2}} {
		if !store.IsSolid(int(pos.X), int(pos.Y), int(pos.Z)) {
			t.Errorf("%s 应为石头", pos)
		}
	}
	if store.IsLoaded(6, 6) {
		t.Error("区块外的更新不应加载区块")
	}

	state := c.State()
	if state.EntityID != 42 || state.DimensionName != "locus:flat" || !state.Spawned {
		t.Errorf("玩家状态 = %s", state)
	}
	if state.Position.X != 1.5 || state.Position.Y != 6 {
		t.Errorf("位置 = %+v, 期望 (1.5, 6, 1.5)", state.Position)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.loads != 1 {
		t.Errorf("区块加载事件 = %d, 期望 1", rec.loads)
	}
	if len(rec.chat) != 1 || rec.chat[0] != "hello" {
		t.Errorf("聊天事件 = %v, 期望 [hello]", rec.chat)
	}
	if len(rec.spawns) != 1 || rec.spawns[0].Height != 128 {
		t.Errorf("出生事件 = %+v", rec.spawns)
	}
	if len(rec.blocks) != 1 {
		t.Errorf("方块事件 = %d, 期望 1", len(rec.blocks))
	}
}

func TestClientLoginDisconnect(t *testing.T) {
	hs, done := fakeServer(t, protocol.CurrentProtocolVersion, func(ctx context.Context, s *conn.Conn) error {
		if _, err := expect[*protocol.Intention](ctx, s); err != nil {
			return err
		}
		if _, err := expect[*protocol.LoginStart](ctx, s); err != nil {
			return err
		}
		return s.Send(&protocol.LoginDisconnect{Reason: `{"text":"whitelist"}`})
	})

	c := New(Config{Addr: "localhost:25565", Username: "Locus", Version: protocol.CurrentProtocolVersion}, world.FallbackRegistry())
	var reasons []string
	c.Bus().Subscribe(event.EventDisconnect, func(raw any) {
		reasons = append(reasons, raw.(*event.DisconnectEvent).Reason)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.run(ctx, hs)
	var de *DisconnectError
	if !errors.As(err, &de) || de.State != protocol.Login {
		t.Fatalf("run 返回 %v, 期望登录阶段的 DisconnectError", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("服务端脚本失败: %v", err)
	}
	if len(reasons) != 1 {
		t.Errorf("断开事件 = %v, 期望 1 个", reasons)
	}
}

func TestClientUnknownDimension(t *testing.T) {
	hs, _ := fakeServer(t, protocol.CurrentProtocolVersion, func(ctx context.Context, s *conn.Conn) error {
		if err := serverLogin(ctx, s); err != nil {
			return err
		}
		if _, err := expect[*protocol.ClientInformation](ctx, s); err != nil {
			return err
		}
		if err := s.Send(&protocol.FinishConfiguration{}); err != nil {
			return err
		}
		if _, err := expect[*protocol.FinishConfiguration](ctx, s); err != nil {
			return err
		}
		return s.Send(&protocol.PlayLogin{
			WorldState: protocol.SpawnInfo{DimensionType: 9, DimensionName: "locus:unknown"},
		})
	})

	c := New(Config{Addr: "localhost:25565", Username: "Locus", Version: protocol.CurrentProtocolVersion}, world.FallbackRegistry())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.run(ctx, hs); err == nil {
		t.Fatal("未知维度应返回错误")
	}
}
