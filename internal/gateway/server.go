// Package gateway exposes a bridge to out-of-process widgets over HTTP and
// WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/notebridge/internal/bridge"
	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/hooks"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/soyeahso/notebridge/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	handshakeTimeout = 10 * time.Second
	maxPayload       = 64 * 1024
	hookName         = "gateway"
)

// Engine is the part of the bridge the gateway drives.
type Engine interface {
	Connect(ctx context.Context) domain.ConnectOutcome
	Disconnect(ctx context.Context)
	SendNote(ctx context.Context, text string) domain.SendOutcome
	NotifyFocusChanged(focused, visible, minimized bool)
	Snapshot() bridge.Snapshot
	Subscribe(event, name string, handler hooks.Handler)
	Unsubscribe(event, name string)
}

// Server is the gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	engine   Engine
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	eventSeq atomic.Int64
	upgrader websocket.Upgrader
	limiter  *authRateLimiter

	// base is the context RPC calls run under. A widget hanging up does
	// not cancel a connect it started.
	base     context.Context
	inflight sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// New creates a gateway server for engine and subscribes to its events.
func New(cfg config.GatewayConfig, engine Engine, log *logging.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		log:      log.Sub("gateway"),
		clients:  NewClientRegistry(log.Sub("gateway")),
		handlers: make(map[string]RequestHandler),
		limiter:  newAuthRateLimiter(),
		base:     context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	s.registerRPCHandlers()

	for _, event := range hooks.AllEvents {
		engine.Subscribe(event, hookName, s.forward)
	}
	return s
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// Events returns the event names pushed to clients.
func Events() []string {
	return []string{EventStatusChanged, EventMessageReceived, EventBadgeChanged, EventConnectionChanged}
}

// Handler returns the HTTP handler for the gateway routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.With(requireToken(s.cfg.Token)).Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWebSocket)
	r.NotFound(handleNotFound)
	return r
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens for HTTP and WebSocket connections. It blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the gateway on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.base = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if s.cfg.Bind == "lan" {
		s.log.Warn().Msg("gateway is reachable from the network without TLS")
	}
	if s.cfg.Token == "" {
		s.log.Warn().Msg("gateway token not set; all websocket clients will be rejected")
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the engine, disconnects every client and stops
// the HTTP server. In-flight RPC calls are given until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	for _, event := range hooks.AllEvents {
		s.engine.Unsubscribe(event, hookName)
	}
	s.clients.CloseAll()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("rpc calls still running at shutdown")
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected widgets.
func (s *Server) Clients() int {
	return s.clients.Count()
}

// forward turns a bridge event into a broadcast frame.
func (s *Server) forward(_ context.Context, p hooks.Payload) error {
	event, payload := eventFrame(p)
	if event == "" {
		return nil
	}
	s.clients.Broadcast(event, payload, s.eventSeq.Add(1))
	return nil
}

func eventFrame(p hooks.Payload) (string, any) {
	switch p.Event {
	case hooks.EventStatusChanged:
		return EventStatusChanged, StatusEvent{Message: p.Status}
	case hooks.EventMessageReceived:
		if p.Message == nil {
			return "", nil
		}
		return EventMessageReceived, p.Message
	case hooks.EventBadgeChanged:
		if p.Badge == nil {
			return "", nil
		}
		return EventBadgeChanged, BadgeEvent{Count: p.Badge.Count, Visible: p.Badge.Visible, Label: p.Badge.Label()}
	case hooks.EventConnectionChanged:
		if p.Connection == nil {
			return "", nil
		}
		return EventConnectionChanged, p.Connection
	}
	return "", nil
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after failed handshakes")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many failed attempts")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, reqID, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.limiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		client.Close()
		return
	}

	// The snapshot is taken with broadcasts held off, so the widget sees
	// every event raised after it.
	err = s.clients.Register(client, func() error {
		return client.Respond(reqID, s.hello(client))
	})
	if err != nil {
		s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("sending hello")
		client.Close()
		return
	}
	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", client.Info.ID).
		Str("clientVersion", client.Info.Version).
		Msg("client authenticated")

	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake runs challenge → connect and authenticates the widget. The
// caller answers the connect request, identified by the returned ID, with
// the hello.
func (s *Server) handshake(conn *websocket.Conn) (*Client, string, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, "", fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, "", fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, "", fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, "", fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != MethodConnect {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, "", fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
		return nil, "", fmt.Errorf("parsing connect params: %w", err)
	}
	if params.MaxProtocol != 0 && (params.MinProtocol > ProtocolVersion || params.MaxProtocol < ProtocolVersion) {
		sendErrorAndClose(conn, frame.ID, "protocol_mismatch", fmt.Sprintf("server speaks protocol %d", ProtocolVersion))
		return nil, "", fmt.Errorf("protocol mismatch: client %d-%d", params.MinProtocol, params.MaxProtocol)
	}

	auth := Authorize(s.cfg.Token, params.Auth)
	if !auth.OK {
		sendErrorAndClose(conn, frame.ID, "unauthorized", auth.Reason)
		return nil, "", fmt.Errorf("auth failed: %s", auth.Reason)
	}

	conn.SetReadDeadline(time.Time{})
	return NewClient(conn, params.Client, s.log), frame.ID, nil
}

func (s *Server) hello(client *Client) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: version.Get().Version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  Events(),
		},
		Snapshot: s.engine.Snapshot(),
	}
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to its handler. Handlers run on their own
// goroutine so a slow connect does not block a disconnect from the same
// widget.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.base
	s.inflight.Add(1)
	s.mu.Unlock()

	rc := &RequestContext{
		Ctx:    ctx,
		Client: client,
		Frame:  frame,
		Server: s,
	}
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("method", frame.Method).Msg("rpc handler panicked")
				rc.RespondError("internal", "internal error")
			}
		}()
		handler(rc)
	}()
}

// sendErrorAndClose sends an error response and closes the connection.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
