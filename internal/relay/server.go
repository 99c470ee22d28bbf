// Package relay implements the wavesend signaling server: the session
// registry HTTP surface plus the WebSocket relay rooms. It is plain
// net/http so the whole surface is exercisable with httptest; the waveserv
// binary only parses config and calls ListenAndServe on a Server.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wavesend/wavesend/internal/config"
	"github.com/wavesend/wavesend/internal/peers"
	"github.com/wavesend/wavesend/internal/session"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// Options bounds the server's resource usage. Zero rate or size values
// disable the corresponding limit.
type Options struct {
	MaxSessions          int
	MaxMessageBytes      int
	WSIdleTimeout        time.Duration
	SessionCreatesPerMin int
	SessionCreatesBurst  int
	WSConnectsPerMin     int
	WSConnectsBurst      int
	Logger               *slog.Logger
}

// OptionsFromConfig maps the waveserv configuration onto server options.
func OptionsFromConfig(cfg config.ServerConfig, logger *slog.Logger) Options {
	return Options{
		MaxSessions:          cfg.MaxSessions,
		MaxMessageBytes:      cfg.MaxMessageBytes,
		WSIdleTimeout:        cfg.WSIdleTimeout,
		SessionCreatesPerMin: cfg.SessionCreatesPerMin,
		SessionCreatesBurst:  cfg.SessionCreatesBurst,
		WSConnectsPerMin:     cfg.WSConnectsPerMin,
		WSConnectsBurst:      cfg.WSConnectsBurst,
		Logger:               logger,
	}
}

// Server serves the session registry REST API and the /ws relay endpoint.
type Server struct {
	store *session.Store
	hub   *peers.Hub
	log   *slog.Logger
	opts  Options

	createLimiter *ipLimiter
	wsLimiter     *ipLimiter

	mux *http.ServeMux
}

// New builds a Server over the given store and hub.
func New(store *session.Store, hub *peers.Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		store:         store,
		hub:           hub,
		log:           opts.Logger,
		opts:          opts,
		createLimiter: newIPLimiter(opts.SessionCreatesPerMin, opts.SessionCreatesBurst),
		wsLimiter:     newIPLimiter(opts.WSConnectsPerMin, opts.WSConnectsBurst),
		mux:           http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("PATCH /sessions/{code}", s.handleUpdateSession)
	s.mux.HandleFunc("DELETE /sessions/{code}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RunSweeper periodically removes expired sessions and tears down their
// relay rooms. It blocks until ctx is canceled.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := s.store.Sweep(now)
			for _, code := range removed {
				s.hub.CloseRoom(code)
			}
			if len(removed) > 0 {
				s.log.Info("swept expired sessions", "count", len(removed))
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if ip := clientIP(r); ip != "" && !s.createLimiter.Allow(ip) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if s.opts.MaxSessions > 0 && s.store.Count() >= s.opts.MaxSessions {
		writeError(w, http.StatusTooManyRequests, "session limit reached")
		return
	}

	var req protocol.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	if req.FileSize < 0 {
		writeError(w, http.StatusBadRequest, "fileSize must be non-negative")
		return
	}

	sess, err := s.store.Create(req.FileName, req.FileSize, req.FileType)
	if err != nil {
		s.log.Error("session create failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not allocate session code")
		return
	}

	s.log.Info("session created", "code", sess.Code, "file", sess.FileName, "size", sess.FileSize)
	writeJSON(w, http.StatusCreated, protocol.CreateSessionResponse{
		Code:     sess.Code,
		ExpireAt: sess.ExpireAt,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("code"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req protocol.UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fields := session.Fields{
		SenderOffer:          req.SenderOffer,
		ReceiverAnswer:       req.ReceiverAnswer,
		SenderIceCandidate:   req.SenderIceCandidate,
		ReceiverIceCandidate: req.ReceiverIceCandidate,
		SenderConnected:      req.SenderConnected,
		ReceiverConnected:    req.ReceiverConnected,
		Active:               req.Active,
	}
	if err := s.store.Update(r.PathValue("code"), fields); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.AckResponse{Success: true})
}

// handleDeleteSession removes the session and force-closes its relay room.
// Deleting an absent or already expired session still succeeds.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	s.store.Delete(code)
	s.hub.CloseRoom(code)
	s.log.Info("session deleted", "code", code)
	writeJSON(w, http.StatusOK, protocol.AckResponse{Success: true})
}

// writeSessionError maps store lookup failures onto the registry's HTTP
// vocabulary: 404 for unknown codes, 410 for codes whose session expired.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrExpired):
		writeError(w, http.StatusGone, "session expired")
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		s.log.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func viewOf(sess session.Session) protocol.SessionView {
	return protocol.SessionView{
		FileName:              sess.FileName,
		FileSize:              sess.FileSize,
		FileType:              sess.FileType,
		SenderConnected:       sess.SenderConnected,
		ReceiverConnected:     sess.ReceiverConnected,
		SenderOffer:           sess.SenderOffer,
		ReceiverAnswer:        sess.ReceiverAnswer,
		SenderIceCandidates:   sess.SenderIceCandidates,
		ReceiverIceCandidates: sess.ReceiverIceCandidates,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}
