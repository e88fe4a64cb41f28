// Package appserver exposes conversations over websocket. Every connection
// owns one conversation: client frames are JSON submissions, server frames
// are JSON events.
package appserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/internal/tracing"
	"github.com/GaaneshT/codex/pkg/conversation"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	writeTimeout     = 10 * time.Second
	startTimeout     = 30 * time.Second
	drainTimeout     = 30 * time.Second
	closeGracePeriod = time.Second
	maxMessageBytes  = 1 << 20

	secretHeader = "X-Codex-Secret"
)

// Server is the websocket app server.
type Server struct {
	addr          string
	sharedSecret  string
	manager       *conversation.Manager
	sessionConfig *config.Config
	logger        zerolog.Logger

	upgrader websocket.Upgrader
	conns    *registry
	server   *http.Server
	listener net.Listener

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	handlers       sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Addr         string
	SharedSecret string
	Manager      *conversation.Manager
	// SessionConfig is used for every conversation the server starts.
	SessionConfig *config.Config
	Logger        zerolog.Logger
}

// frame is a client submission before its op is decoded.
type frame struct {
	ID string          `json:"id"`
	Op json.RawMessage `json:"op"`
}

// NewServer creates a new app server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("conversation manager is required")
	}
	if cfg.SessionConfig == nil {
		return nil, fmt.Errorf("session config is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	observability.EnsureRegistered()

	return &Server{
		addr:          cfg.Addr,
		sharedSecret:  cfg.SharedSecret,
		manager:       cfg.Manager,
		sessionConfig: cfg.SessionConfig,
		logger:        cfg.Logger.With().Str("component", "appserver").Logger(),
		conns:         newRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the HTTP routes served by the app server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","connections":%d}`, s.conns.Count())
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting app server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("App server error")
		}
	}()
	return nil
}

// Addr returns the listening address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop refuses new connections, shuts every conversation down and waits for
// the connection handlers to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Int("connections", s.conns.Count()).Msg("Shutting down app server")

	var errs []error
	if err := s.manager.ShutdownAll(ctx); err != nil {
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
		for _, c := range s.conns.GetAll() {
			c.Conn.Close()
		}
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown server: %w", err))
		}
	}

	s.logger.Info().Msg("App server stopped")
	return errors.Join(errs...)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.handlers.Add(1)
	s.shutdownMu.RUnlock()
	defer s.handlers.Done()

	if !s.authorized(r) {
		s.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejected connection without a valid secret")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	connID, _ := gonanoid.New()
	ctx := tracing.WithConnectionID(context.Background(), connID)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	conv, err := s.manager.NewConversation(startCtx, s.sessionConfig)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start conversation")
		_ = conn.WriteJSON(protocol.Event{Msg: protocol.ErrorEvent{Message: err.Error()}})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "conversation unavailable"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	c := newConnection(connID, conn, conv.Conversation, r.RemoteAddr)
	observability.SetAppServerConnections(s.conns.Add(c))
	logger = logger.With().Str("conversation_id", conv.ConversationID).Logger()
	logger.Info().Str("ip", r.RemoteAddr).Msg("Client connected")

	defer func() {
		conn.Close()
		observability.SetAppServerConnections(s.conns.Remove(connID))
		logger.Info().Msg("Client disconnected")
	}()

	if err := c.writeEvent(protocol.Event{Msg: conv.SessionConfigured}); err != nil {
		logger.Warn().Err(err).Msg("Failed to send session configuration")
		s.closeConversation(ctx, c)
		return
	}

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pumpEvents(pumpCtx, c, logger)
	}()

	s.readSubmissions(ctx, c, logger)
	s.closeConversation(ctx, c)

	select {
	case <-pumpDone:
	case <-time.After(writeTimeout):
		stopPump()
		<-pumpDone
	}
}

// readSubmissions forwards client frames to the conversation until the
// socket closes.
func (s *Server) readSubmissions(ctx context.Context, c *connection, logger zerolog.Logger) {
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		s.handleMessage(ctx, c, message, logger)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *connection, message []byte, logger zerolog.Logger) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		s.sendError(c, "", fmt.Sprintf("invalid submission: %v", err), logger)
		return
	}
	op, err := protocol.DecodeOp(f.Op)
	if err != nil {
		s.sendError(c, f.ID, err.Error(), logger)
		return
	}

	c.idMu.Lock()
	id, err := c.Codex.Submit(ctx, op)
	if err == nil && f.ID != "" {
		c.clientIDs[id] = f.ID
	}
	c.idMu.Unlock()

	if err != nil {
		s.sendError(c, f.ID, err.Error(), logger)
		return
	}
	logger.Debug().
		Str("submission_id", id).
		Str("client_id", f.ID).
		Str("op", op.Type()).
		Msg("Submission forwarded")
}

// pumpEvents writes every conversation event to the socket and closes it
// after ShutdownComplete.
func (s *Server) pumpEvents(ctx context.Context, c *connection, logger zerolog.Logger) {
	for {
		ev, err := c.Codex.NextEvent(ctx)
		if err != nil {
			if !errors.Is(err, conversation.ErrSessionClosed) {
				logger.Warn().Err(err).Msg("Event stream ended")
			}
			c.writeClose(websocket.CloseNormalClosure, "session closed")
			return
		}

		ev.ID = c.clientID(ev.ID)
		if err := c.writeEvent(ev); err != nil {
			// Keep draining so the conversation can finish.
			logger.Debug().Err(err).Str("type", ev.Msg.Type()).Msg("Failed to write event")
			continue
		}

		if _, ok := ev.Msg.(protocol.ShutdownComplete); ok {
			c.writeClose(websocket.CloseNormalClosure, "session closed")
			return
		}
	}
}

// closeConversation shuts the connection's conversation down and waits for
// it to terminate.
func (s *Server) closeConversation(ctx context.Context, c *connection) {
	if _, err := c.Codex.Submit(ctx, protocol.Shutdown{}); err != nil && !errors.Is(err, conversation.ErrSessionClosed) {
		s.logger.Warn().Err(err).Str("connection_id", c.ID).Msg("Failed to submit shutdown")
	}

	select {
	case <-c.Codex.Done():
	case <-time.After(drainTimeout):
		s.logger.Warn().Str("connection_id", c.ID).Msg("Conversation did not shut down in time")
	}
}

func (s *Server) sendError(c *connection, id, message string, logger zerolog.Logger) {
	if err := c.writeEvent(protocol.Event{ID: id, Msg: protocol.ErrorEvent{Message: message}}); err != nil {
		logger.Debug().Err(err).Msg("Failed to send error")
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.sharedSecret == "" {
		return true
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.sharedSecret)) == 1
}
