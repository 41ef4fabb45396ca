package protocol

import "sync"

type State int

const (
	Handshaking State = iota
	Status
	Login
	Configuration
	Play
)

func (s State) String() string {
	switch s {
	case Handshaking:
		return "handshaking"
	case Status:
		return "status"
	case Login:
		return "login"
	case Configuration:
		return "configuration"
	case Play:
		return "play"
	default:
		return "unknown"
	}
}

// Direction is the travel direction of a packet. Clientbound packets are
// written by servers and read by clients.
type Direction int

const (
	Clientbound Direction = iota
	Serverbound
)

func (d Direction) String() string {
	if d == Clientbound {
		return "clientbound"
	}
	return "serverbound"
}

func (d Direction) Opposite() Direction {
	if d == Clientbound {
		return Serverbound
	}
	return Clientbound
}

// Intent is the next-state field of the handshake.
type Intent int32

const (
	IntentStatus   Intent = 1
	IntentLogin    Intent = 2
	IntentTransfer Intent = 3
)

// Target returns the state both streams enter after the handshake.
func (i Intent) Target() State {
	if i == IntentStatus {
		return Status
	}
	return Login
}

// Streams tracks the state of each direction separately. The two sides of
// a connection switch at different packets: the clientbound stream enters
// Configuration after LoginSuccess, while the serverbound stream follows
// only after LoginAcknowledged.
type Streams struct {
	Clientbound State
	Serverbound State
}

func (s Streams) Get(dir Direction) State {
	if dir == Clientbound {
		return s.Clientbound
	}
	return s.Serverbound
}

func (s *Streams) set(dir Direction, st State) {
	if dir == Clientbound {
		s.Clientbound = st
	} else {
		s.Serverbound = st
	}
}

// After returns the stream states once pkt has travelled in direction dir.
// Packets that do not trigger a transition leave the states unchanged.
func (s Streams) After(dir Direction, pkt Packet) Streams {
	next, ok := Transition(s.Get(dir), dir, pkt)
	if !ok {
		return s
	}
	if pkt.Kind() == KindIntention {
		return Streams{Clientbound: next, Serverbound: next}
	}
	s.set(dir, next)
	return s
}

// Transition reports the state a stream enters after pkt was sent or
// received on it while in state.
func Transition(state State, dir Direction, pkt Packet) (State, bool) {
	switch state {
	case Handshaking:
		if h, ok := pkt.(*Intention); ok && dir == Serverbound {
			return h.Intent.Target(), true
		}
	case Login:
		switch {
		case dir == Clientbound && pkt.Kind() == KindLoginSuccess:
			return Configuration, true
		case dir == Serverbound && pkt.Kind() == KindLoginAcknowledged:
			return Configuration, true
		}
	case Configuration:
		if pkt.Kind() == KindFinishConfiguration {
			return Play, true
		}
	case Play:
		switch {
		case dir == Clientbound && pkt.Kind() == KindStartConfiguration:
			return Configuration, true
		case dir == Serverbound && pkt.Kind() == KindConfigurationAcknowledged:
			return Configuration, true
		}
	}
	return state, false
}

// ConnState is the shared view of a relayed connection. The proxy updates it
// from both relay goroutines.
type ConnState struct {
	mu        sync.Mutex
	streams   Streams
	threshold int
}

func NewConnState() *ConnState {
	return &ConnState{
		threshold: -1,
	}
}

func (cs *ConnState) Get(dir Direction) State {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.streams.Get(dir)
}

func (cs *ConnState) Streams() Streams {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.streams
}

// Observe applies the transition triggered by pkt and returns the new states.
func (cs *ConnState) Observe(dir Direction, pkt Packet) Streams {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.streams = cs.streams.After(dir, pkt)
	return cs.streams
}

func (cs *ConnState) SetThreshold(t int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.threshold = t
}

func (cs *ConnState) GetThreshold() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.threshold
}
