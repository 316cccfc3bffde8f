package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pants721/mao/engine"
	"github.com/pants721/mao/internal/history"
	"github.com/pants721/mao/internal/ratelimit"
	"github.com/pants721/mao/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// requestTimeout bounds a single request, including lobby code reservation.
const requestTimeout = 5 * time.Second

type Config struct {
	Environment    string
	AllowedOrigins []string
	SendBuffer     int
	RateLimit      ratelimit.Config
}

// Server accepts WebSocket sessions and serves the read-only lobby API.
type Server struct {
	config   Config
	manager  *engine.LobbyManager
	handler  *CommandHandler
	hub      *Hub
	limiter  *ratelimit.Limiter
	history  *history.Recorder
	checks   map[string]HealthCheck
	upgrader websocket.Upgrader
	logger   *zap.Logger

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
}

type Option func(*Server)

// HealthCheck probes a backing service for /health.
type HealthCheck func(ctx context.Context) error

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithHistory exposes recorded lobby events over HTTP.
func WithHistory(recorder *history.Recorder) Option {
	return func(s *Server) {
		s.history = recorder
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(config Config, manager *engine.LobbyManager, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		manager: manager,
		handler: NewCommandHandler(manager),
		limiter: ratelimit.New(config.RateLimit),
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]struct{}),
		checks:  make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.hub = NewHub(s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows requests without an Origin header (non-browser clients),
// any origin when the allowlist holds "*", and otherwise only listed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.originAllowed(origin) {
		return true
	}
	s.logger.Warn("rejected websocket origin", zap.String("origin", origin))
	return false
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return s.originAllowed(origin) },
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.handleHealth)
	r.GET("/lobbies", s.handleListLobbies)
	r.GET("/lobbies/:id", s.handleGetLobby)
	if s.history != nil {
		r.GET("/lobbies/:id/events", s.handleLobbyEvents)
	}
	r.GET("/ws", s.handleWebSocket)
	return r
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.clientsMu.Lock()
	s.httpServer = httpServer
	s.clientsMu.Unlock()

	s.logger.Info("server starting", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and closes every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close(websocket.CloseGoingAway, "server shutting down")
	}
	httpServer := s.httpServer
	s.clientsMu.Unlock()

	s.limiter.Stop()

	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	services := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
			services[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		services[name] = "ok"
	}

	body := gin.H{"status": status, "lobbies": s.manager.Count()}
	if len(services) > 0 {
		body["services"] = services
	}
	c.JSON(code, body)
}

func (s *Server) handleListLobbies(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.ListLobbies())
}

func (s *Server) handleGetLobby(c *gin.Context) {
	state, err := s.manager.Snapshot(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, state.View())
}

func (s *Server) handleLobbyEvents(c *gin.Context) {
	lobbyID := c.Param("id")
	if _, err := s.manager.Get(lobbyID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse(err))
		return
	}
	events, err := s.history.Events(c.Request.Context(), lobbyID)
	if err != nil {
		s.logger.Error("failed to load lobby events", zap.String("lobby_id", lobbyID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), conn, s.config.SendBuffer, s.logger)
	if !s.track(client) {
		client.Close(websocket.CloseGoingAway, "server shutting down")
	}
	client.logger.Info("client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	go client.WritePump()
	client.ReadPump(s.handleMessage)

	s.untrack(client)
	s.hub.UnsubscribeAll(client)
	s.limiter.Forget(client.ID)
	client.logger.Info("client disconnected", zap.Int("dropped_messages", client.Dropped()))
}

func (s *Server) track(client *Client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.clients[client] = struct{}{}
	return true
}

func (s *Server) untrack(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
}

// handleMessage processes one inbound frame. It returns false when the
// connection must end.
func (s *Server) handleMessage(client *Client, messageType int, data []byte) bool {
	if messageType != websocket.TextMessage {
		s.fail(client, fmt.Errorf("%w: frame type %d", models.ErrUnsupportedMessage, messageType))
		return false
	}

	if !s.limiter.Allow(client.ID) {
		client.SendJSON(ErrorResponse(ErrRateLimited))
		return true
	}

	req, err := models.DecodeRequest(data)
	if err != nil {
		s.fail(client, err)
		return false
	}

	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()

	result, err := s.handler.Handle(ctx, req)
	if err != nil {
		kind := classify(err)
		if kind == models.ErrKindInternal {
			client.logger.Error("request failed", zap.String("request", string(req.Kind())), zap.Error(err))
		} else {
			client.logger.Debug("request rejected", zap.String("request", string(req.Kind())), zap.String("kind", string(kind)))
		}
		client.SendJSON(ErrorResponse(err))
		return true
	}

	lobbyID := result.State.ID
	if result.Subscribe {
		s.hub.Subscribe(lobbyID, client, result.Player)
	}

	s.hub.Reply(result.State, client, result.Player, result.Draw)
	s.hub.Broadcast(result.State, client)

	if result.Subscribe {
		// changes made before the subscription existed were not broadcast here
		if latest, err := s.manager.Snapshot(lobbyID); err == nil {
			s.hub.Sync(latest, client)
		}
	}
	return true
}

// fail reports a connection-fatal error and closes with a policy violation.
func (s *Server) fail(client *Client, err error) {
	client.logger.Info("closing connection", zap.Error(err))
	client.SendJSON(ErrorResponse(err))
	client.Close(websocket.ClosePolicyViolation, string(classify(err)))
}
