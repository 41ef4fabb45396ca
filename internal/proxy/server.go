package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/hook"
	"github.com/Versifine/locus/internal/logger"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	listenerAddr string
	backendAddr  string
	bus          *event.Bus
	hooks        hook.Chain
}

func NewServer(listenerAddr, backendAddr string) *Server {
	return &Server{listenerAddr: listenerAddr, backendAddr: backendAddr, bus: event.NewBus()}
}

// Use adds a hook that may drop relayed packets. Hooks must be added
// before Start.
func (s *Server) Use(h hook.Hook) {
	s.hooks = append(s.hooks, h)
}

// Bus publishes the packets and state changes the proxy observes.
func (s *Server) Bus() *event.Bus {
	return s.bus
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("Starting proxy server", "listener_addr", s.listenerAddr, "backend_addr", s.backendAddr)
	netListener, err := net.Listen("tcp", s.listenerAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, netListener)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, netListener net.Listener) error {
	defer netListener.Close()
	stop := context.AfterFunc(ctx, func() {
		slog.Info("Shutting down proxy server")
		_ = netListener.Close()
	})
	defer stop()
	for {
		conn, err := netListener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				slog.Info("Proxy server stopped")
				return nil
			}
			slog.Error("Error accepting connection", "error", err)
			return err
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()
	// Disable Nagle's algorithm for lower latency
	if tcpConn, ok := clientConn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	var d net.Dialer
	backendConn, err := d.DialContext(ctx, "tcp", s.backendAddr)
	if err != nil {
		slog.Error("Error connecting to backend", "error", err)
		return
	}
	defer backendConn.Close()
	if tcpConn, ok := backendConn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	ctx = logger.WithAttrs(ctx, "client", clientConn.RemoteAddr().String())
	log := logger.FromContext(ctx)
	log.Info("Proxying connection", "backend", s.backendAddr)
	sess := newSession(s.bus, s.hooks, log)

	var g errgroup.Group
	g.Go(func() error {
		// either side ending tears down both
		defer backendConn.Close()
		return sess.relay(clientConn, backendConn, upstream)
	})
	g.Go(func() error {
		defer clientConn.Close()
		return sess.relay(backendConn, clientConn, downstream)
	})
	if err := g.Wait(); err != nil && !isClosed(err) {
		log.Error("Relay failed", "error", err)
	}
	log.Info("Connection closed", "state", sess.cs.Streams())
}
