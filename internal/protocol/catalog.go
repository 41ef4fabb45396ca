package protocol

import "fmt"

const (
	KindIntention PacketKind = "intention"

	KindStatusRequest  PacketKind = "status_request"
	KindStatusResponse PacketKind = "status_response"
	KindPingRequest    PacketKind = "ping_request"
	KindPongResponse   PacketKind = "pong_response"

	KindLoginDisconnect     PacketKind = "login_disconnect"
	KindEncryptionRequest   PacketKind = "encryption_request"
	KindLoginSuccess        PacketKind = "login_success"
	KindSetCompression      PacketKind = "set_compression"
	KindLoginPluginRequest  PacketKind = "login_plugin_request"
	KindCookieRequest       PacketKind = "cookie_request"
	KindLoginStart          PacketKind = "login_start"
	KindEncryptionResponse  PacketKind = "encryption_response"
	KindLoginPluginResponse PacketKind = "login_plugin_response"
	KindLoginAcknowledged   PacketKind = "login_acknowledged"
	KindCookieResponse      PacketKind = "cookie_response"

	KindCustomPayload         PacketKind = "custom_payload"
	KindDisconnect            PacketKind = "disconnect"
	KindFinishConfiguration   PacketKind = "finish_configuration"
	KindKeepAlive             PacketKind = "keep_alive"
	KindConfigPing            PacketKind = "ping"
	KindConfigPong            PacketKind = "pong"
	KindRegistryData          PacketKind = "registry_data"
	KindUpdateEnabledFeatures PacketKind = "update_enabled_features"
	KindSelectKnownPacks      PacketKind = "select_known_packs"
	KindClientInformation     PacketKind = "client_information"

	KindBlockEntityData           PacketKind = "block_entity_data"
	KindBlockUpdate               PacketKind = "block_update"
	KindChunkBatchFinished        PacketKind = "chunk_batch_finished"
	KindChunkBatchStart           PacketKind = "chunk_batch_start"
	KindForgetLevelChunk          PacketKind = "forget_level_chunk"
	KindLevelChunkWithLight       PacketKind = "level_chunk_with_light"
	KindPlayLogin                 PacketKind = "login"
	KindPlayerPosition            PacketKind = "player_position"
	KindRespawn                   PacketKind = "respawn"
	KindSectionBlocksUpdate       PacketKind = "section_blocks_update"
	KindSetChunkCacheCenter       PacketKind = "set_chunk_cache_center"
	KindStartConfiguration        PacketKind = "start_configuration"
	KindSystemChat                PacketKind = "system_chat"
	KindAcceptTeleportation       PacketKind = "accept_teleportation"
	KindChunkBatchReceived        PacketKind = "chunk_batch_received"
	KindConfigurationAcknowledged PacketKind = "configuration_acknowledged"
	KindPlayerLoaded              PacketKind = "player_loaded"
)

var factories = map[PacketKind]func() Packet{
	KindIntention: func() Packet { return &Intention{} },

	KindStatusRequest:  func() Packet { return &StatusRequest{} },
	KindStatusResponse: func() Packet { return &StatusResponse{} },
	KindPingRequest:    func() Packet { return &PingRequest{} },
	KindPongResponse:   func() Packet { return &PongResponse{} },

	KindLoginDisconnect:     func() Packet { return &LoginDisconnect{} },
	KindEncryptionRequest:   func() Packet { return &EncryptionRequest{} },
	KindLoginSuccess:        func() Packet { return &LoginSuccess{} },
	KindSetCompression:      func() Packet { return &SetCompression{} },
	KindLoginPluginRequest:  func() Packet { return &LoginPluginRequest{} },
	KindCookieRequest:       func() Packet { return &CookieRequest{} },
	KindLoginStart:          func() Packet { return &LoginStart{} },
	KindEncryptionResponse:  func() Packet { return &EncryptionResponse{} },
	KindLoginPluginResponse: func() Packet { return &LoginPluginResponse{} },
	KindLoginAcknowledged:   func() Packet { return &LoginAcknowledged{} },
	KindCookieResponse:      func() Packet { return &CookieResponse{} },

	KindCustomPayload:         func() Packet { return &CustomPayload{} },
	KindDisconnect:            func() Packet { return &Disconnect{} },
	KindFinishConfiguration:   func() Packet { return &FinishConfiguration{} },
	KindKeepAlive:             func() Packet { return &KeepAlive{} },
	KindConfigPing:            func() Packet { return &ConfigPing{} },
	KindConfigPong:            func() Packet { return &ConfigPong{} },
	KindRegistryData:          func() Packet { return &RegistryData{} },
	KindUpdateEnabledFeatures: func() Packet { return &UpdateEnabledFeatures{} },
	KindSelectKnownPacks:      func() Packet { return &SelectKnownPacks{} },
	KindClientInformation:     func() Packet { return &ClientInformation{} },

	KindBlockEntityData:           func() Packet { return &BlockEntityData{} },
	KindBlockUpdate:               func() Packet { return &BlockUpdate{} },
	KindChunkBatchFinished:        func() Packet { return &ChunkBatchFinished{} },
	KindChunkBatchStart:           func() Packet { return &ChunkBatchStart{} },
	KindForgetLevelChunk:          func() Packet { return &ForgetLevelChunk{} },
	KindLevelChunkWithLight:       func() Packet { return &LevelChunkWithLight{} },
	KindPlayLogin:                 func() Packet { return &PlayLogin{} },
	KindPlayerPosition:            func() Packet { return &PlayerPosition{} },
	KindRespawn:                   func() Packet { return &Respawn{} },
	KindSectionBlocksUpdate:       func() Packet { return &SectionBlocksUpdate{} },
	KindSetChunkCacheCenter:       func() Packet { return &SetChunkCacheCenter{} },
	KindStartConfiguration:        func() Packet { return &StartConfiguration{} },
	KindSystemChat:                func() Packet { return &SystemChat{} },
	KindAcceptTeleportation:       func() Packet { return &AcceptTeleportation{} },
	KindChunkBatchReceived:        func() Packet { return &ChunkBatchReceived{} },
	KindConfigurationAcknowledged: func() Packet { return &ConfigurationAcknowledged{} },
	KindPlayerLoaded:              func() Packet { return &PlayerLoaded{} },
}

type catalogKey struct {
	state State
	dir   Direction
}

type idTable map[int32]PacketKind

// Handshake, status, login and configuration ids are shared by every
// supported version.
var commonTables = map[catalogKey]idTable{
	{Handshaking, Serverbound}: {
		0x00: KindIntention,
	},
	{Status, Clientbound}: {
		0x00: KindStatusResponse,
		0x01: KindPongResponse,
	},
	{Status, Serverbound}: {
		0x00: KindStatusRequest,
		0x01: KindPingRequest,
	},
	{Login, Clientbound}: {
		0x00: KindLoginDisconnect,
		0x01: KindEncryptionRequest,
		0x02: KindLoginSuccess,
		0x03: KindSetCompression,
		0x04: KindLoginPluginRequest,
		0x05: KindCookieRequest,
	},
	{Login, Serverbound}: {
		0x00: KindLoginStart,
		0x01: KindEncryptionResponse,
		0x02: KindLoginPluginResponse,
		0x03: KindLoginAcknowledged,
		0x04: KindCookieResponse,
	},
	{Configuration, Clientbound}: {
		0x00: KindCookieRequest,
		0x01: KindCustomPayload,
		0x02: KindDisconnect,
		0x03: KindFinishConfiguration,
		0x04: KindKeepAlive,
		0x05: KindConfigPing,
		0x07: KindRegistryData,
		0x0C: KindUpdateEnabledFeatures,
		0x0E: KindSelectKnownPacks,
	},
	{Configuration, Serverbound}: {
		0x00: KindClientInformation,
		0x01: KindCookieResponse,
		0x02: KindCustomPayload,
		0x03: KindFinishConfiguration,
		0x04: KindKeepAlive,
		0x05: KindConfigPong,
		0x07: KindSelectKnownPacks,
	},
}

var playTables = map[ProtocolVersion]map[Direction]idTable{
	V1_21_1: {
		Clientbound: {
			0x07: KindBlockEntityData,
			0x09: KindBlockUpdate,
			0x0C: KindChunkBatchFinished,
			0x0D: KindChunkBatchStart,
			0x1D: KindDisconnect,
			0x21: KindForgetLevelChunk,
			0x26: KindKeepAlive,
			0x27: KindLevelChunkWithLight,
			0x2B: KindPlayLogin,
			0x40: KindPlayerPosition,
			0x47: KindRespawn,
			0x49: KindSectionBlocksUpdate,
			0x54: KindSetChunkCacheCenter,
			0x69: KindStartConfiguration,
			0x6C: KindSystemChat,
		},
		Serverbound: {
			0x00: KindAcceptTeleportation,
			0x08: KindChunkBatchReceived,
			0x0C: KindConfigurationAcknowledged,
			0x18: KindKeepAlive,
		},
	},
	V1_21_11: {
		Clientbound: {
			0x06: KindBlockEntityData,
			0x08: KindBlockUpdate,
			0x0B: KindChunkBatchFinished,
			0x0C: KindChunkBatchStart,
			0x20: KindDisconnect,
			0x25: KindForgetLevelChunk,
			0x2B: KindKeepAlive,
			0x2C: KindLevelChunkWithLight,
			0x30: KindPlayLogin,
			0x46: KindPlayerPosition,
			0x50: KindRespawn,
			0x52: KindSectionBlocksUpdate,
			0x5C: KindSetChunkCacheCenter,
			0x74: KindStartConfiguration,
			0x77: KindSystemChat,
		},
		Serverbound: {
			0x00: KindAcceptTeleportation,
			0x0A: KindChunkBatchReceived,
			0x0F: KindConfigurationAcknowledged,
			0x1B: KindKeepAlive,
			0x2B: KindPlayerLoaded,
		},
	},
}

// Registry is the closed packet catalog of one protocol version. It is
// immutable after NewRegistry and safe for concurrent use.
type Registry struct {
	version ProtocolVersion
	byID    map[catalogKey]idTable
	byKind  map[catalogKey]map[PacketKind]int32
}

func NewRegistry(v ProtocolVersion) (*Registry, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	reg := &Registry{
		version: v,
		byID:    make(map[catalogKey]idTable),
		byKind:  make(map[catalogKey]map[PacketKind]int32),
	}
	for key, table := range commonTables {
		reg.add(key, table)
	}
	for dir, table := range playTables[v] {
		reg.add(catalogKey{Play, dir}, table)
	}
	return reg, nil
}

// MustRegistry is NewRegistry for versions known to be supported.
func MustRegistry(v ProtocolVersion) *Registry {
	reg, err := NewRegistry(v)
	if err != nil {
		panic(err)
	}
	return reg
}

func (reg *Registry) add(key catalogKey, table idTable) {
	ids := make(idTable, len(table))
	kinds := make(map[PacketKind]int32, len(table))
	for id, kind := range table {
		if _, ok := factories[kind]; !ok {
			panic(fmt.Sprintf("protocol: no factory for %s", kind))
		}
		ids[id] = kind
		kinds[kind] = id
	}
	reg.byID[key] = ids
	reg.byKind[key] = kinds
}

func (reg *Registry) Version() ProtocolVersion {
	return reg.version
}

func (reg *Registry) Lookup(state State, dir Direction, id int32) (PacketKind, bool) {
	kind, ok := reg.byID[catalogKey{state, dir}][id]
	return kind, ok
}

func (reg *Registry) ID(state State, dir Direction, kind PacketKind) (int32, bool) {
	id, ok := reg.byKind[catalogKey{state, dir}][kind]
	return id, ok
}

// New returns an empty packet for id, or an *UnknownPacketError when the id
// is not part of the catalog of (state, dir).
func (reg *Registry) New(state State, dir Direction, id int32) (Packet, error) {
	kind, ok := reg.Lookup(state, dir, id)
	if !ok {
		return nil, &UnknownPacketError{State: state, Direction: dir, ID: id}
	}
	return factories[kind](), nil
}
