// Package gateway exposes the relay over HTTP and websocket: session
// management under /api, device-code sign-in, and the viewer stream at /ws.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/auth"
	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/config"
	"github.com/cobblechat/cobblechat/pkg/relay"
	"github.com/cobblechat/cobblechat/pkg/session"
)

type Server struct {
	cfg      config.GatewayConfig
	registry *session.Registry
	hub      *relay.Hub
	bus      *bus.MessageBus
	flow     *auth.Flow
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	connectTimeout time.Duration
}

func NewServer(cfg config.GatewayConfig, registry *session.Registry, hub *relay.Hub, b *bus.MessageBus, flow *auth.Flow, connectTimeout time.Duration) *Server {
	s := &Server{
		cfg:            cfg,
		registry:       registry,
		hub:            hub,
		bus:            b,
		flow:           flow,
		logger:         log.With().Str("component", "gateway").Logger(),
		connectTimeout: connectTimeout,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

// Router builds the HTTP handler. Exposed separately from ListenAndServe so
// tests can mount it on httptest servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(s.registry.List()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/authenticate", s.handleAuthenticate)
		api.Post("/sessions", s.handleCreateSession)
		api.Get("/sessions", s.handleListSessions)
		api.Delete("/sessions/{sessionID}", s.handleRemoveSession)
	})

	r.Get("/ws", s.handleWS)

	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type authenticateRequest struct {
	OwnerName string `json:"ownerName"`
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if s.flow == nil {
		respondError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}

	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerName == "" {
		respondError(w, http.StatusBadRequest, "ownerName is required")
		return
	}

	da, err := s.flow.BeginDeviceAuth(r.Context(), req.OwnerName)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", req.OwnerName).Msg("device auth failed")
		respondError(w, http.StatusBadGateway, "device authorization failed")
		return
	}
	respondJSON(w, http.StatusOK, da)
}

type createSessionRequest struct {
	OwnerName   string `json:"ownerName"`
	Destination string `json:"destination"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := session.Identity{Owner: req.OwnerName, Destination: req.Destination}

	ctx, cancel := context.WithTimeout(r.Context(), s.connectTimeout)
	defer cancel()

	sess, err := s.registry.Create(ctx, id)
	switch {
	case errors.Is(err, session.ErrInvalidIdentity):
		respondError(w, http.StatusBadRequest, "ownerName and destination are required")
		return
	case errors.Is(err, session.ErrAlreadyExists):
		respondJSON(w, http.StatusConflict, sessionResponse{
			SessionID: sess.Identity().String(),
			State:     sess.State().String(),
		})
		return
	case err != nil:
		s.logger.Error().Err(err).Str("session", id.String()).Msg("connect failed")
		respondError(w, http.StatusBadGateway, "connection failed")
		return
	}

	s.logger.Info().Str("session", sess.Identity().String()).Msg("session created")
	respondJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.Identity().String(),
		State:     sess.State().String(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.List()
	resp := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, sessionResponse{
			SessionID: sess.Identity().String(),
			State:     sess.State().String(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	id, ok := session.ParseID(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	s.registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
