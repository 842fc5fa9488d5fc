// Package server implements the hostifd gRPC control API and the
// daemon's serve loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/frobware/go-hostif/config"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/lock"
	"github.com/frobware/go-hostif/manager"
)

const metricsTimeout = 10 * time.Second

// RunConfig configures the daemon.
type RunConfig struct {
	Dirs config.RuntimeDirs
	// TCPAddress optionally exposes the API on TCP as well as the
	// unix socket, for example ":50051".
	TCPAddress string
	Config     config.Config
	Logger     *slog.Logger
}

// Run starts hostifd and blocks until ctx is cancelled or a listener
// fails. It holds the runtime directory's writer lock for its whole
// lifetime, so a second daemon on the same directory fails fast.
func Run(ctx context.Context, cfg RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = manager.WithOpIDHandler(logger)
	dirs := cfg.Dirs

	if err := dirs.EnsureDirectories(); err != nil {
		return fmt.Errorf("runtime directory setup failed: %w", err)
	}

	return lock.TryRun(ctx, dirs.Lock(), func(ctx context.Context, held lock.Scope) error {
		logger.DebugContext(ctx, "acquired writer lock", "path", held.Path(), "fd", held.FD())

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		env, err := OpenEnv(ctx, dirs, cfg.Config, logger, reg)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := New(env.Manager, logger, WithInspection(env.Store, env.Devices))
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(gctx, dirs.SocketPath(), cfg.TCPAddress)
		})
		if addr := cfg.Config.Server.MetricsAddress; addr != "" {
			g.Go(func() error {
				return serveMetrics(gctx, addr, reg, logger)
			})
		} else {
			logger.InfoContext(ctx, "metrics endpoint disabled")
		}
		return g.Wait()
	})
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		reg,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Timeout: metricsTimeout}),
	))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: metricsTimeout}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()
	logger.InfoContext(ctx, "metrics endpoint listening", "address", ln.Addr().String())
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Server implements the control API over a Manager.
type Server struct {
	mgr       *manager.Manager
	logger    *slog.Logger
	opCounter atomic.Uint64

	store  inspect.StoreLister
	prober inspect.DeviceProber
}

// Option configures a Server.
type Option func(*Server)

// WithInspection enables the Inspect method, correlating the records
// in store with the devices prober finds.
func WithInspection(store inspect.StoreLister, prober inspect.DeviceProber) Option {
	return func(s *Server) {
		s.store = store
		s.prober = prober
	}
}

// New creates a server for mgr.
func New(mgr *manager.Manager, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mgr:    mgr,
		logger: manager.WithOpIDHandler(logger).With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the control API service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer returns a gRPC server with the service registered and
// the server's interceptors installed.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(s.loggingInterceptor()))
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Serve listens on the unix socket at socketPath and, when tcpAddr is
// set, on TCP. It returns when ctx is cancelled or a listener fails.
func (s *Server) Serve(ctx context.Context, socketPath, tcpAddr string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listeners := make([]net.Listener, 0, 2)
	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o660); err != nil {
		unixListener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	listeners = append(listeners, unixListener)

	if tcpAddr != "" {
		tcpListener, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			unixListener.Close()
			return fmt.Errorf("failed to listen on TCP %s: %w", tcpAddr, err)
		}
		listeners = append(listeners, tcpListener)
	}

	return s.serveListeners(ctx, listeners...)
}

func (s *Server) serveListeners(ctx context.Context, listeners ...net.Listener) error {
	gs := s.NewGRPCServer()
	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		g.Go(func() error {
			s.logger.InfoContext(ctx, "hostifd gRPC server listening", "network", ln.Addr().Network(), "address", ln.Addr().String())
			if err := gs.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("%s server: %w", ln.Addr().Network(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.InfoContext(ctx, "shutting down gRPC server")
		gs.GracefulStop()
		return nil
	})
	return g.Wait()
}

// loggingInterceptor assigns a monotonic operation ID to each request,
// logs failures and converts engine errors to gRPC status.
func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		opID := s.opCounter.Add(1)
		ctx = manager.ContextWithOpID(ctx, opID)
		resp, err := handler(ctx, req)
		if err != nil {
			s.logger.DebugContext(ctx, "request failed", "method", info.FullMethod, "error", err)
		}
		return resp, toStatus(err)
	}
}
