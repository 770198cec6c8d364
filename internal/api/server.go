package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
	"github.com/bryanchriswhite/wlrsrc/internal/config"
	"github.com/bryanchriswhite/wlrsrc/internal/output"
	"github.com/bryanchriswhite/wlrsrc/internal/streamer"
)

const (
	snapshotTimeout = 5 * time.Second
	statsInterval   = time.Second
)

// Version is reported by the health endpoint
var Version = "0.1.0"

// FrameSource is the streaming side the API reads from
type FrameSource interface {
	Snapshot(ctx context.Context) (*image.RGBA, error)
	Stats() streamer.Stats
}

// EngineStats reports capture engine counters
type EngineStats interface {
	Stats() capture.Stats
}

// Status is the body of /api/status and of every stats websocket message
type Status struct {
	Engine   capture.Stats      `json:"engine"`
	Streamer streamer.Stats     `json:"streamer"`
	MJPEG    *output.MJPEGStats `json:"mjpeg,omitempty"`
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	configMgr *config.Manager
	engine    EngineStats
	frames    FrameSource
	mjpeg     *output.MJPEGOutput
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	http      *http.Server
}

// NewServer creates a new API server. mjpeg may be nil.
func NewServer(configMgr *config.Manager, engine EngineStats, frames FrameSource, mjpeg *output.MJPEGOutput, log zerolog.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		configMgr: configMgr,
		engine:    engine,
		frames:    frames,
		mjpeg:     mjpeg,
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/stats/ws", s.handleStatsStream)

	if s.mjpeg != nil {
		s.router.HandleFunc("/stream", s.mjpeg.GetHTTPHandler()).Methods("GET")
		s.router.HandleFunc("/", s.mjpeg.GetViewerHandler()).Methods("GET")
	}
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", "http://localhost"+addr).Msg("Starting server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) status() Status {
	st := Status{
		Engine:   s.engine.Stats(),
		Streamer: s.frames.Stats(),
	}
	if s.mjpeg != nil {
		m := s.mjpeg.Stats()
		st.MJPEG = &m
	}
	return st
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := output.ParseImageFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	img, err := s.frames.Snapshot(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Snapshot failed")
		http.Error(w, err.Error(), snapshotStatus(err))
		return
	}

	var buf bytes.Buffer
	if err := output.Encode(&buf, img, format, s.configMgr.Get().Stream.JPEGQuality); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func snapshotStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, capture.ErrBusy), errors.Is(err, capture.ErrNotStarted), capture.IsFatal(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Reading detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.status()); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
