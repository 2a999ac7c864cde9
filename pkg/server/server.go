// Package server hosts collaborative editing rooms. A Coordinator accepts
// connections and routes each Peer to a Room; every Room owns one scene
// graph, applies commands in arrival order and fans the resulting changes
// out to its members.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/philpax/exoform-sub000/pkg/engine"
	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/kernel/sdfx"
	"github.com/philpax/exoform-sub000/pkg/preview"
	"github.com/philpax/exoform-sub000/pkg/protocol"
	"github.com/philpax/exoform-sub000/pkg/store"
)

// Server ties the coordinator to its listeners and snapshot store.
type Server struct {
	cfg   Config
	store store.Store
	coord *Coordinator
}

// New validates cfg, opens the snapshot store and evaluates the seed
// script if one is configured.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var seed *graph.Graph
	if cfg.SeedScript != "" {
		g, err := engine.NewEngine().EvaluateFile(cfg.SeedScript)
		if err != nil {
			return nil, fmt.Errorf("seed script: %w", err)
		}
		seed = g
	}
	st, err := store.Open(cfg.StoreURI, cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return NewWithStore(cfg, st, seed), nil
}

// NewWithStore builds a server around an already opened store.
func NewWithStore(cfg Config, st store.Store, seed *graph.Graph) *Server {
	return &Server{cfg: cfg, store: st, coord: NewCoordinator(cfg, st, seed)}
}

// Coordinator returns the server's coordinator.
func (s *Server) Coordinator() *Coordinator { return s.coord }

// Close closes the snapshot store. Call it after Serve has returned.
func (s *Server) Close() error { return s.store.Close() }

// ListenAndServe binds the configured TCP, WebSocket and metrics addresses
// and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	var wsLn, metricsLn net.Listener
	if s.cfg.WebSocketAddr != "" {
		if wsLn, err = net.Listen("tcp", s.cfg.WebSocketAddr); err != nil {
			ln.Close()
			return err
		}
	}
	if s.cfg.MetricsAddr != "" {
		if metricsLn, err = net.Listen("tcp", s.cfg.MetricsAddr); err != nil {
			ln.Close()
			if wsLn != nil {
				wsLn.Close()
			}
			return err
		}
	}
	return s.Serve(ctx, ln, wsLn, metricsLn)
}

// Serve runs the coordinator and accepts on the given listeners until ctx
// is cancelled. metricsLn also serves mesh previews. wsLn and metricsLn
// may be nil. When Serve returns every
// room has made its final save.
func (s *Server) Serve(ctx context.Context, ln, wsLn, metricsLn net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		s.coord.Run(ctx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptTCP(gctx, ln) })
	if wsLn != nil {
		g.Go(func() error { return s.serveHTTP(gctx, wsLn, s.websocketHandler(gctx)) })
	}
	if metricsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", preview.Handler(preview.New(sdfx.New()), s.roomGraph))
		g.Go(func() error { return s.serveHTTP(gctx, metricsLn, mux) })
	}

	err := g.Wait()
	cancel()
	<-coordDone
	return err
}

// roomGraph returns a copy of a running room's graph, or nil.
func (s *Server) roomGraph(ctx context.Context, name string) (*graph.Graph, error) {
	r, err := s.coord.Room(ctx, name)
	if err != nil || r == nil {
		return nil, err
	}
	st, err := r.Inspect(ctx)
	if errors.Is(err, ErrActorClosed) {
		return nil, nil
	}
	return st.Graph, err
}

func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) error {
	glog.Infof("listening on %s", ln.Addr())
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if err := s.coord.Accept(ctx, protocol.NewStreamConn(c, s.cfg.MaxFrameSize)); err != nil {
			glog.Warningf("accepting %s: %v", c.RemoteAddr(), err)
		}
	}
}

func (s *Server) websocketHandler(ctx context.Context) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.Warningf("websocket upgrade from %s: %v", r.RemoteAddr, err)
			return
		}
		if err := s.coord.Accept(ctx, protocol.NewWebSocketConn(ws, s.cfg.MaxFrameSize)); err != nil {
			glog.Warningf("accepting %s: %v", r.RemoteAddr, err)
		}
	})
}

func (s *Server) serveHTTP(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	glog.Infof("serving http on %s", ln.Addr())
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
