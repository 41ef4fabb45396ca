package protocol

import (
	"sync"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		dir    Direction
		pkt    Packet
		want   State
		wantOK bool
	}{
		{"握手进入状态查询", Handshaking, Serverbound, &Intention{Intent: IntentStatus}, Status, true},
		{"握手进入登录", Handshaking, Serverbound, &Intention{Intent: IntentLogin}, Login, true},
		{"转移进入登录", Handshaking, Serverbound, &Intention{Intent: IntentTransfer}, Login, true},
		{"登录成功", Login, Clientbound, &LoginSuccess{}, Configuration, true},
		{"登录确认", Login, Serverbound, &LoginAcknowledged{}, Configuration, true},
		{"服务端方向的登录成功无效", Login, Serverbound, &LoginSuccess{}, Login, false},
		{"配置完成(客户端方向)", Configuration, Clientbound, &FinishConfiguration{}, Play, true},
		{"配置完成(服务端方向)", Configuration, Serverbound, &FinishConfiguration{}, Play, true},
		{"开始重新配置", Play, Clientbound, &StartConfiguration{}, Configuration, true},
		{"确认重新配置", Play, Serverbound, &ConfigurationAcknowledged{}, Configuration, true},
		{"普通数据包不切换", Play, Clientbound, &KeepAlive{}, Play, false},
		{"状态查询无后续", Status, Serverbound, &PingRequest{}, Status, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Transition(tt.state, tt.dir, tt.pkt)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Transition = (%s, %v), 期望 (%s, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// The two streams of a login switch at different packets.
func TestStreamsLoginSequence(t *testing.T) {
	var s Streams
	steps := []struct {
		dir  Direction
		pkt  Packet
		want Streams
	}{
		{Serverbound, &Intention{Intent: IntentLogin}, Streams{Login, Login}},
		{Serverbound, &LoginStart{}, Streams{Login, Login}},
		{Clientbound, &LoginSuccess{}, Streams{Configuration, Login}},
		{Serverbound, &LoginAcknowledged{}, Streams{Configuration, Configuration}},
		{Clientbound, &FinishConfiguration{}, Streams{Play, Configuration}},
		{Serverbound, &FinishConfiguration{}, Streams{Play, Play}},
		{Clientbound, &StartConfiguration{}, Streams{Configuration, Play}},
		{Serverbound, &ConfigurationAcknowledged{}, Streams{Configuration, Configuration}},
	}
	for i, step := range steps {
		s = s.After(step.dir, step.pkt)
		if s != step.want {
			t.Fatalf("第 %d 步 %s 之后 = %+v, 期望 %+v", i, step.pkt.Kind(), s, step.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Handshaking, "handshaking"},
		{Status, "status"},
		{Login, "login"},
		{Configuration, "configuration"},
		{Play, "play"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, 期望 %q", tt.state, got, tt.want)
		}
	}
}

func TestConnStateConcurrent(t *testing.T) {
	cs := NewConnState()
	if cs.GetThreshold() != -1 {
		t.Fatalf("初始阈值 = %d, 期望 -1", cs.GetThreshold())
	}
	cs.Observe(Serverbound, &Intention{Intent: IntentLogin})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs.SetThreshold(256)
			_ = cs.Get(Clientbound)
			_ = cs.Streams()
		}()
	}
	wg.Wait()

	if got := cs.Observe(Clientbound, &LoginSuccess{}); got.Clientbound != Configuration || got.Serverbound != Login {
		t.Errorf("Observe = %+v", got)
	}
	if cs.GetThreshold() != 256 {
		t.Errorf("阈值 = %d, 期望 256", cs.GetThreshold())
	}
}
