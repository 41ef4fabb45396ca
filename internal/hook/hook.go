// Package hook 负责拦截器逻辑
package hook

import "github.com/Versifine/locus/internal/protocol"

// Packet is a frame seen by the proxy. Payload is decompressed and must not
// be modified.
type Packet struct {
	Direction protocol.Direction
	State     protocol.State
	Raw       *protocol.RawPacket
}

// Hook 定义拦截器接口
type Hook interface {
	// OnPacket 在收到数据包时被调用, 返回 false 表示丢弃该包
	OnPacket(p Packet) bool
}

// Func adapts a function to Hook.
type Func func(p Packet) bool

func (f Func) OnPacket(p Packet) bool { return f(p) }

// DefaultHook 默认拦截器实现，不做任何修改
type DefaultHook struct{}

func (DefaultHook) OnPacket(Packet) bool { return true }

// Chain runs hooks in order and stops at the first that drops the packet.
type Chain []Hook

func (c Chain) OnPacket(p Packet) bool {
	for _, h := range c {
		if !h.OnPacket(p) {
			return false
		}
	}
	return true
}

// DropIDs drops packets with the given ids in one state and direction.
func DropIDs(state protocol.State, dir protocol.Direction, ids ...int32) Hook {
	set := make(map[int32]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return Func(func(p Packet) bool {
		return p.State != state || p.Direction != dir || !set[p.Raw.ID]
	})
}
