package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Server pushes plan execution events to WebSocket subscribers
type Server struct {
	addr        string
	token       string
	server      *http.Server
	listener    net.Listener
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *Broadcaster
	logger      zerolog.Logger

	shutdownMu     sync.RWMutex
	isShuttingDown bool
}

// Config holds server configuration
type Config struct {
	Addr   string
	Token  string
	Logger zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	clients := NewClientRegistry()

	return &Server{
		addr:        cfg.Addr,
		token:       cfg.Token,
		clients:     clients,
		broadcaster: NewBroadcaster(clients, cfg.Logger),
		logger:      cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}, nil
}

// Start binds the listener and begins serving. It returns once the
// listener is bound, so Addr reports the real port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{Handler: mux}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound listen address
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	for _, client := range s.clients.GetAll() {
		client.close()
		s.clients.Remove(client.ID)
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// Broadcaster returns the server's event broadcaster
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// ConnectedClients returns information about all connected clients
func (s *Server) ConnectedClients() []ClientInfo {
	return s.clients.Snapshot()
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := newClient(clientID, conn, r.RemoteAddr)
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go client.writePump()
	go s.readLoop(client)
}

// authorized checks the bearer token when one is configured. The token
// may arrive in the Authorization header or a token query parameter.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ") == s.token
	}

	return r.URL.Query().Get("token") == s.token
}

// readLoop consumes inbound frames until the client goes away. The
// stream is one-way; inbound payloads only refresh activity tracking.
func (s *Server) readLoop(client *Client) {
	defer func() {
		client.close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Str("clientId", client.ID).Msg("WebSocket read error")
			}
			return
		}
		client.touch()
	}
}
