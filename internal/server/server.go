package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
	"github.com/AndreyRyab/mama-talk/internal/version"
)

var ErrServerClosed = http.ErrServerClosed

// Health is the body of GET /health.
type Health struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
	Rooms       int       `json:"rooms"`
	Connections int       `json:"connections"`
	Users       int       `json:"users"`
}

// Landing is the body of GET / when no web client is served.
type Landing struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Server struct {
	log *slog.Logger
	cfg *config.ServerConfig
	hub *signaling.Hub

	origins   *originPolicy
	upgrader  websocket.Upgrader
	clientCfg signaling.ClientConfig

	mux *http.ServeMux
	srv *http.Server
}

func New(cfg *config.ServerConfig, hub *signaling.Hub, logger *slog.Logger) *Server {
	s := &Server{
		log:     logger,
		cfg:     cfg,
		hub:     hub,
		origins: newOriginPolicy(cfg.AllowedOrigins),
		mux:     http.NewServeMux(),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin:     s.origins.checkOrigin,
	}

	s.clientCfg = signaling.DefaultClientConfig()
	if cfg.WSMaxMessageBytes > 0 {
		s.clientCfg.MaxMessageSize = cfg.WSMaxMessageBytes
	}
	if cfg.WSSendBuffer > 0 {
		s.clientCfg.SendBuffer = cfg.WSSendBuffer
	}
	if cfg.WSPongWait > 0 {
		s.clientCfg.PongWait = cfg.WSPongWait
		s.clientCfg.PingPeriod = (cfg.WSPongWait * 9) / 10
	}

	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
		s.originMiddleware(),
	)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Shutdown does not track hijacked connections.
	s.srv.RegisterOnShutdown(s.closeClients)

	return s
}

func (s *Server) closeClients() {
	if n := s.hub.CloseAll(); n > 0 {
		s.log.Info("closing websocket clients", "count", n)
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Serve(l net.Listener) error {
	s.log.Info("http server serving",
		"addr", l.Addr().String(),
		"environment", s.cfg.Environment,
		"origins", s.cfg.AllowedOrigins,
	)
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.closeClients()
	return s.srv.Close()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /ws", s.serveWs)

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		stats := s.hub.Stats()
		WriteJSON(w, http.StatusOK, Health{
			Status:      "OK",
			Timestamp:   time.Now().UTC(),
			Environment: s.cfg.Environment,
			Version:     version.Version,
			Rooms:       stats.Rooms,
			Connections: stats.Connections,
			Users:       stats.Users,
		})
	})

	if s.cfg.IsProduction() {
		if index := filepath.Join(s.cfg.StaticDir, "index.html"); fileExists(index) {
			s.mux.Handle("GET /", spaHandler(s.cfg.StaticDir))
			return
		}
		s.log.Warn("static dir has no index.html, serving landing response", "dir", s.cfg.StaticDir)
	}

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, Landing{Status: "OK", Message: "Mama Talk Server Running"})
	})
}

// serveWs upgrades the request and hands the socket to a signaling client.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.log.Warn("failed to upgrade connection", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := signaling.NewClient(s.hub, conn, s.clientCfg, s.log)
	client.Start()
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not name a file, so client-side routes like /room/<id> load the app.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if r.URL.Path != "/" && !fileExists(name) {
			http.ServeFile(w, r, index)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
