package chat

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server composes the listeners around one Registry: the plain TCP accept
// loop, the optional websocket bridge, and the metrics endpoint. Each
// accepted connection gets its own session goroutine.
type Server struct {
	cfg Config
	log *slog.Logger
	reg *Registry

	listener      net.Listener
	wsServer      *http.Server
	metricsServer *http.Server
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg: cfg,
		log: logger,
		reg: NewRegistry(logger),
	}
}

func (s *Server) Registry() *Registry { return s.reg }

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	go s.acceptLoop(ln)

	if s.cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebsocket)
		s.wsServer = &http.Server{Addr: s.cfg.WSAddr, Handler: mux}
		go func() {
			if err := s.wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("websocket listener failed", "error", err)
			}
		}()
	}

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsServer = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	s.log.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound chat listener address, useful when the configured
// port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() {
	s.log.Info("shutting down")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.wsServer != nil {
		_ = s.wsServer.Shutdown(ctx)
	}
	if s.metricsServer != nil {
		_ = s.metricsServer.Shutdown(ctx)
	}
	s.reg.TerminateAll()

	s.log.Info("shutdown complete")
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed; normal shutdown path.
			return
		}
		s.log.Info("client connected", "addr", conn.RemoteAddr().String())
		sess := NewSession(s.reg, NewTCPTransport(conn), s.cfg.OutBufferSize, s.log)
		go sess.Run()
	}
}
