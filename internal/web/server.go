// Package web provides the redliner's web interface: a docx upload page,
// redline processing with per-paragraph progress streamed over WebSocket,
// and download of the corrected copy.
package web

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rshdesign/redliner/core/redline"
	"github.com/rshdesign/redliner/internal/logging"
	"github.com/rshdesign/redliner/internal/server"
)

// DefaultMaxUploadSize caps uploads at 32 MB.
const DefaultMaxUploadSize = 32 << 20

// Config holds web server configuration.
type Config struct {
	Port           int
	OutputDir      string
	BoundaryMarker string
	MaxUploadSize  int64
	AllowedOrigins []string
}

// Server serves the upload UI and processes uploaded menus.
type Server struct {
	cfg       Config
	hub       *Hub
	redliner  *redline.Redliner
	corrector redline.Corrector
	upgrader  websocket.Upgrader
}

// New creates a web server that redlines uploads with the given corrector.
func New(cfg Config, corrector redline.Corrector) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	s := &Server{
		cfg:       cfg,
		hub:       NewHub(),
		redliner:  redline.New(cfg.BoundaryMarker),
		corrector: corrector,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin validates the websocket Origin header against the allowed
// list. An empty list allows all origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Handler builds the full middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)

	var handler http.Handler = mux
	handler = server.MaxBytesMiddleware(s.cfg.MaxUploadSize, handler)
	handler = server.SecurityHeadersMiddleware(handler)
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	handler = logging.CombinedMiddleware(handler)
	return handler
}

// Start runs the hub and the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.ServerStartup("web", "http", s.cfg.Port,
		"output_dir", server.AbsPath(s.cfg.OutputDir))
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(&s.upgrader, w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.hub.ClientCount())
}
