package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/hook"
	"github.com/Versifine/locus/internal/protocol"
)

func TestProxyForwardsDataToBackend(t *testing.T) {
	backendListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("启动后端 mock 服务器失败: %v", err)
	}
	t.Cleanup(func() {
		_ = backendListener.Close()
	})

	backendPacketCh := make(chan *protocol.RawPacket, 1)
	backendErrCh := make(chan error, 1)
	go func() {
		conn, err := backendListener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			backendErrCh <- err
			return
		}
		defer conn.Close()

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		packet, err := protocol.ReadPacket(conn, -1)
		if err != nil {
			backendErrCh <- err
			return
		}
		backendPacketCh <- packet
	}()

	proxyAddr, proxyDone := startProxyOnceForTest(t, NewServer("", backendListener.Addr().String()))

	clientConn, err := net.DialTimeout("tcp", proxyAddr, 2*time.Second)
	if err != nil {
		t.Fatalf("客户端连接 proxy 失败: %v", err)
	}
	t.Cleanup(func() {
		_ = clientConn.Close()
	})

	_ = clientConn.SetDeadline(time.Now().Add(2 * time.Second))
	want := &protocol.RawPacket{
		ID:      0x01, // 握手阶段没有该 ID，原样转发
		Payload: []byte("hello-backend"),
	}
	if err := protocol.WritePacket(clientConn, want, -1); err != nil {
		t.Fatalf("客户端写入数据到 proxy 失败: %v", err)
	}

	select {
	case err := <-backendErrCh:
		t.Fatalf("后端读取失败: %v", err)
	case got := <-backendPacketCh:
		if got.ID != want.ID {
			t.Errorf("后端收到 Packet.ID = %d, 期望 %d", got.ID, want.ID)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("后端收到 Payload = %q, 期望 %q", got.Payload, want.Payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("等待后端收到转发数据超时")
	}

	_ = clientConn.Close()

	select {
	case <-proxyDone:
	case <-time.After(2 * time.Second):
		t.Fatal("等待 proxy 清理连接超时")
	}
}

func startProxyOnceForTest(t *testing.T, server *Server) (string, <-chan struct{}) {
	t.Helper()

	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("启动 proxy 监听失败: %v", err)
	}
	t.Cleanup(func() {
		_ = proxyListener.Close()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := proxyListener.Accept()
		if err != nil {
			return
		}
		server.handleConnection(context.Background(), conn)
	}()

	return proxyListener.Addr().String(), done
}

// startBackend accepts one connection and runs fn on it as the server side.
func startBackend(t *testing.T, v protocol.ProtocolVersion, fn func(ctx context.Context, c *conn.Conn) error) (string, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("启动后端 mock 服务器失败: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan error, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		c, err := conn.NewServer(nc, v)
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- fn(ctx, c)
	}()
	return ln.Addr().String(), done
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

type recorder struct {
	mu      sync.Mutex
	kinds   []protocol.PacketKind
	changes []protocol.Streams
}

func (r *recorder) attach(bus *event.Bus) {
	bus.Subscribe(event.EventPacket, func(raw any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.kinds = append(r.kinds, raw.(*event.PacketEvent).Packet.Kind())
	})
	bus.Subscribe(event.EventStateChange, func(raw any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes = append(r.changes, raw.(*event.StateChangeEvent).To)
	})
}

func (r *recorder) last() protocol.Streams {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return protocol.Streams{}
	}
	return r.changes[len(r.changes)-1]
}

func (r *recorder) saw(kind protocol.PacketKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestProxyFollowsCompressionIntoPlay(t *testing.T) {
	for _, v := range protocol.SupportedVersions() {
		t.Run(v.String(), func(t *testing.T) {
			testProxyFollowsCompression(t, v)
		})
	}
}

func testProxyFollowsCompression(t *testing.T, v protocol.ProtocolVersion) {
	longText := strings.Repeat("relay ", 50)
	backendAddr, backendDone := startBackend(t, v, func(ctx context.Context, c *conn.Conn) error {
		if _, err := expect[*protocol.Intention](ctx, c); err != nil {
			return err
		}
		if _, err := expect[*protocol.LoginStart](ctx, c); err != nil {
			return err
		}
		if err := c.Send(&protocol.SetCompression{Threshold: 32}); err != nil {
			return err
		}
		if err := c.Send(&protocol.LoginSuccess{UUID: protocol.GenerateOfflineUUID("Locus"), Username: "Locus"}); err != nil {
			return err
		}
		if _, err := expect[*protocol.LoginAcknowledged](ctx, c); err != nil {
			return err
		}
		if err := c.Send(&protocol.FinishConfiguration{}); err != nil {
			return err
		}
		if _, err := expect[*protocol.FinishConfiguration](ctx, c); err != nil {
			return err
		}
		if err := c.Send(&protocol.SystemChat{Content: protocol.NewTextComponent(longText)}); err != nil {
			return err
		}
		ka, err := expect[*protocol.KeepAlive](ctx, c)
		if err != nil {
			return err
		}
		if ka.KeepAliveID != 99 {
			return errors.New("keep alive id changed in transit")
		}
		return nil
	})

	server := NewServer("", backendAddr)
	var rec recorder
	rec.attach(server.Bus())
	proxyAddr, proxyDone := startProxyOnceForTest(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs, err := conn.Dial(ctx, proxyAddr, v)
	if err != nil {
		t.Fatalf("连接 proxy 失败: %v", err)
	}
	defer hs.Close()
	lc, err := hs.Login("localhost", 25565)
	if err != nil {
		t.Fatal(err)
	}
	if err := lc.Start("Locus", protocol.GenerateOfflineUUID("Locus")); err != nil {
		t.Fatal(err)
	}
	for {
		p, err := lc.Recv(ctx)
		if err != nil {
			t.Fatalf("登录阶段读取失败: %v", err)
		}
		if _, ok := p.(*protocol.LoginSuccess); ok {
			break
		}
	}
	cc, err := lc.Acknowledge()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cc.Recv(ctx); err != nil {
		t.Fatalf("配置阶段读取失败: %v", err)
	}
	pc, err := cc.Finish()
	if err != nil {
		t.Fatal(err)
	}
	p, err := pc.Recv(ctx)
	if err != nil {
		t.Fatalf("游戏阶段读取失败: %v", err)
	}
	chat, ok := p.(*protocol.SystemChat)
	if !ok || chat.Content.Text() != longText {
		t.Fatalf("收到 %T, 期望完整的 SystemChat", p)
	}
	if err := pc.Send(&protocol.KeepAlive{KeepAliveID: 99}); err != nil {
		t.Fatal(err)
	}

	if err := <-backendDone; err != nil {
		t.Fatalf("后端流程失败: %v", err)
	}
	_ = hs.Close()
	select {
	case <-proxyDone:
	case <-time.After(2 * time.Second):
		t.Fatal("等待 proxy 清理连接超时")
	}

	want := protocol.Streams{Clientbound: protocol.Play, Serverbound: protocol.Play}
	if got := rec.last(); got != want {
		t.Errorf("最终状态 = %+v, 期望 %+v", got, want)
	}
	for _, kind := range []protocol.PacketKind{protocol.KindIntention, protocol.KindSetCompression, protocol.KindLoginAcknowledged} {
		if !rec.saw(kind) {
			t.Errorf("未发布 %s 事件", kind)
		}
	}
	if rec.saw(protocol.KindSystemChat) {
		t.Error("SystemChat 不应被解析")
	}
}

func TestProxyRelaysEncryptedSession(t *testing.T) {
	v := protocol.CurrentProtocolVersion
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	backendAddr, backendDone := startBackend(t, v, func(ctx context.Context, c *conn.Conn) error {
		if _, err := expect[*protocol.Intention](ctx, c); err != nil {
			return err
		}
		if _, err := expect[*protocol.LoginStart](ctx, c); err != nil {
			return err
		}
		if err := c.Send(&protocol.EncryptionRequest{PublicKey: der, VerifyToken: []byte{9, 9}}); err != nil {
			return err
		}
		resp, err := expect[*protocol.EncryptionResponse](ctx, c)
		if err != nil {
			return err
		}
		secret, _, err := protocol.DecryptFromClient(key, resp)
		if err != nil {
			return err
		}
		if err := c.EnableEncryption(secret); err != nil {
			return err
		}
		if err := c.Send(&protocol.SetCompression{Threshold: 16}); err != nil {
			return err
		}
		if err := c.Send(&protocol.LoginSuccess{UUID: protocol.GenerateOfflineUUID("Locus"), Username: "Locus"}); err != nil {
			return err
		}
		_, err = expect[*protocol.LoginAcknowledged](ctx, c)
		return err
	})

	server := NewServer("", backendAddr)
	var rec recorder
	rec.attach(server.Bus())
	proxyAddr, _ := startProxyOnceForTest(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs, err := conn.Dial(ctx, proxyAddr, v)
	if err != nil {
		t.Fatalf("连接 proxy 失败: %v", err)
	}
	defer hs.Close()
	lc, err := hs.Login("localhost", 25565)
	if err != nil {
		t.Fatal(err)
	}
	if err := lc.Start("Locus", protocol.GenerateOfflineUUID("Locus")); err != nil {
		t.Fatal(err)
	}
	for done := false; !done; {
		p, err := lc.Recv(ctx)
		if err != nil {
			t.Fatalf("登录阶段读取失败: %v", err)
		}
		switch p := p.(type) {
		case *protocol.EncryptionRequest:
			if err := lc.Encrypt(p); err != nil {
				t.Fatal(err)
			}
		case *protocol.LoginSuccess:
			done = true
		}
	}
	if _, err := lc.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if err := <-backendDone; err != nil {
		t.Fatalf("后端流程失败: %v", err)
	}
	if !rec.saw(protocol.KindEncryptionRequest) {
		t.Error("未发布 EncryptionRequest 事件")
	}
	if rec.saw(protocol.KindSetCompression) {
		t.Error("加密后的 SetCompression 不应被解析")
	}
}

func TestProxyRelaysUnsupportedVersion(t *testing.T) {
	backendListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("启动后端 mock 服务器失败: %v", err)
	}
	t.Cleanup(func() { _ = backendListener.Close() })

	trailer := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	gotCh := make(chan []byte, 1)
	go func() {
		c, err := backendListener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.SetDeadline(time.Now().Add(2 * time.Second))
		if _, err := protocol.ReadPacket(c, -1); err != nil {
			gotCh <- nil
			return
		}
		buf := make([]byte, len(trailer))
		if _, err := io.ReadFull(c, buf); err != nil {
			gotCh <- nil
			return
		}
		gotCh <- buf
	}()

	proxyAddr, _ := startProxyOnceForTest(t, NewServer("", backendListener.Addr().String()))
	clientConn, err := net.DialTimeout("tcp", proxyAddr, 2*time.Second)
	if err != nil {
		t.Fatalf("客户端连接 proxy 失败: %v", err)
	}
	defer clientConn.Close()

	payload, err := protocol.Marshal(&protocol.Intention{ProtocolVersion: 47, ServerAddress: "localhost", ServerPort: 25565, Intent: protocol.IntentLogin}, protocol.CurrentProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	if err := protocol.WritePacket(clientConn, &protocol.RawPacket{ID: 0x00, Payload: payload}, -1); err != nil {
		t.Fatal(err)
	}
	// 不是合法的帧，只有透明转发才能送达
	if _, err := clientConn.Write(trailer); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-gotCh:
		if !bytes.Equal(got, trailer) {
			t.Errorf("后端收到 %x, 期望 %x", got, trailer)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("等待后端收到转发数据超时")
	}
}

func TestProxyHookDropsPackets(t *testing.T) {
	backendListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("启动后端 mock 服务器失败: %v", err)
	}
	t.Cleanup(func() { _ = backendListener.Close() })

	gotCh := make(chan *protocol.RawPacket, 1)
	go func() {
		c, err := backendListener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.SetDeadline(time.Now().Add(2 * time.Second))
		p, err := protocol.ReadPacket(c, -1)
		if err != nil {
			gotCh <- nil
			return
		}
		gotCh <- p
	}()

	server := NewServer("", backendListener.Addr().String())
	server.Use(hook.DropIDs(protocol.Handshaking, protocol.Serverbound, 0x01))
	proxyAddr, _ := startProxyOnceForTest(t, server)
	clientConn, err := net.DialTimeout("tcp", proxyAddr, 2*time.Second)
	if err != nil {
		t.Fatalf("客户端连接 proxy 失败: %v", err)
	}
	defer clientConn.Close()

	for _, id := range []int32{0x01, 0x02} {
		if err := protocol.WritePacket(clientConn, &protocol.RawPacket{ID: id, Payload: []byte{byte(id)}}, -1); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case got := <-gotCh:
		if got == nil || got.ID != 0x02 {
			t.Errorf("后端收到 %+v, 期望 ID 0x02", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("等待后端收到转发数据超时")
	}
}

// failingListener fails every Accept with an error that is not a close.
type failingListener struct {
	mu     sync.Mutex
	closes int
}

func (l *failingListener) Accept() (net.Conn, error) { return nil, errors.New("accept: too many open files") }
func (l *failingListener) Addr() net.Addr           { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (l *failingListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return nil
}

func (l *failingListener) closeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

func TestServeReleasesListenerOnAcceptError(t *testing.T) {
	server := NewServer("", "")
	ln := &failingListener{}
	ctx, cancel := context.WithCancel(context.Background())

	if err := server.Serve(ctx, ln); err == nil {
		t.Fatal("Accept 失败时 Serve 应返回错误")
	}
	if got := ln.closeCount(); got != 1 {
		t.Fatalf("返回后监听器关闭次数 = %d, 期望 1", got)
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	if got := ln.closeCount(); got != 1 {
		t.Errorf("取消后监听器关闭次数 = %d, 期望 1 (关闭协程应已释放)", got)
	}
}
