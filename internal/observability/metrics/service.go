package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "nowplaying/pkg/logx"
)

const DefaultAddr = "127.0.0.1:9464"

var ErrInsecureBind = errors.New("metrics refused to start: non-loopback addr")

// Config controls the optional /metrics HTTP server.
type Config struct {
	Enabled bool
	Addr    string

	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

// Service exposes the default Prometheus registry over HTTP.
type Service struct {
	cfg      Config
	log      logx.Logger
	gatherer prometheus.Gatherer

	// ready receives the bound address once listening (tests use ":0").
	ready chan string
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, gatherer: prometheus.DefaultGatherer, ready: make(chan string, 1)}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Ready yields the listen address once Serve has bound its socket.
func (s *Service) Ready() <-chan string { return s.ready }

func (s *Service) addr() string {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	return addr
}

// Serve runs the HTTP server until ctx is canceled.
func (s *Service) Serve(ctx context.Context) error {
	addr := s.addr()
	if !isLoopbackAddr(addr) {
		s.log.Error("metrics refused to start", logx.String("addr", addr))
		return ErrInsecureBind
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	defer func() { _ = ln.Close() }()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	rt := s.cfg.ReadTimeout
	if rt <= 0 {
		rt = 10 * time.Second
	}
	it := s.cfg.IdleTimeout
	if it <= 0 {
		it = 60 * time.Second
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: rt,
		ReadTimeout:       rt,
		IdleTimeout:       it,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	bound := ln.Addr().String()
	s.log.Info("metrics listening", logx.String("addr", bound))
	select {
	case s.ready <- bound:
	default:
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		s.log.Info("metrics stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
