package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"devconnect/db"
	"devconnect/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
)

type Server struct {
	db       *db.DB
	config   *ServerConfig
	store    *sessions.CookieStore
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
}

type ServerConfig struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SessionSecret string
	AllowedOrigin string
	HistoryLimit  int
}

func New(database *db.DB, config *ServerConfig) *Server {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 200
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	store := sessions.NewCookieStore([]byte(config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		db:     database,
		config: config,
		store:  store,
		hub:    newHub(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:        ":" + strconv.Itoa(s.config.Port),
		Handler:     s.router,
		ReadTimeout: s.config.ReadTimeout,
		// websocket writes carry their own deadlines
		IdleTimeout: 2 * s.config.ReadTimeout,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.InfoF("DevConnect server started on port %d", s.config.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every websocket with reason and stops the listener.
func (s *Server) Shutdown(reason string) {
	clients := s.hub.all()
	for _, c := range clients {
		c.closeWith(websocket.CloseGoingAway, reason)
	}
	logger.Info("Closed websocket clients", "count", len(clients), "reason", reason)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	connections, users := s.hub.stats()
	sort.Strings(users)
	return "connections=" + strconv.Itoa(connections) + ",users=" + strings.Join(users, ";")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.config.AllowedOrigin == "*" {
		return true
	}
	for _, allowed := range strings.Split(s.config.AllowedOrigin, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}
	return false
}
