// Package http exposes chatflow sessions over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/session"
)

// Engine is the part of chatflow.Engine the server needs.
type Engine interface {
	OpenSession(ctx context.Context, userID string, req domain.SessionRequest) (*session.Session, error)
	Session(key string) (*session.Session, bool)
	FlowHash() string
	Graph() *domain.Graph
}

// Server routes requests to engine sessions.
type Server struct {
	Engine   Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger logs every request and failed call.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves gatherer on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(server.logRequests)

	r.Post("/sessions", server.Open)
	r.Route("/sessions/{key}", func(r chi.Router) {
		r.Get("/", server.Get)
		r.Delete("/", server.Close)
		r.Post("/answers", server.Answer)
		r.Post("/input", server.Input)
		r.Post("/reset", server.Reset)
	})
	r.Get("/flow/hash", server.Hash)
	r.Get("/flow/graph", server.GetGraph)

	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started),
		)
	})
}

// Request and response bodies.

type openRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

type answerRequest struct {
	Value any `json:"value"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type resetRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// SessionView is the JSON representation of an open session.
type SessionView struct {
	Key        string                  `json:"key"`
	UserID     string                  `json:"userId"`
	ScenarioID string                  `json:"scenarioId"`
	SessionID  string                  `json:"sessionId"`
	Guest      bool                    `json:"guest"`
	Node       *domain.Node            `json:"node,omitempty"`
	IsEnd      bool                    `json:"isEnd"`
	Outcome    domain.HydrationOutcome `json:"outcome"`
	Source     domain.SnapshotSource   `json:"source"`
	Persisted  bool                    `json:"persisted"`
	State      *domain.ChatState       `json:"state"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Open handles POST /sessions.
func (s *Server) Open(w http.ResponseWriter, r *http.Request) {
	var body openRequest
	if !decode(w, r, &body) {
		return
	}

	req := domain.SessionAuto
	if body.SessionID != "" {
		req = domain.SessionRequest(body.SessionID)
	}
	sess, err := s.Engine.OpenSession(r.Context(), body.UserID, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

// Get handles GET /sessions/{key}.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Close handles DELETE /sessions/{key}.
func (s *Server) Close(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// Answer handles POST /sessions/{key}/answers.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body answerRequest
	if !decode(w, r, &body) {
		return
	}
	if err := sess.SubmitAnswer(r.Context(), body.Value); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Input handles POST /sessions/{key}/input.
func (s *Server) Input(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body inputRequest
	if !decode(w, r, &body) {
		return
	}
	if err := sess.SubmitInput(r.Context(), body.Text); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Reset handles POST /sessions/{key}/reset. The session moves to a new key.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body resetRequest
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	if err := sess.Reset(r.Context(), body.SessionID); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Hash handles GET /flow/hash.
func (s *Server) Hash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hash": s.Engine.FlowHash()})
}

// GetGraph handles GET /flow/graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Graph()
	nodes := make([]domain.Node, 0, len(g.Nodes))
	for _, id := range g.IDs() {
		n, _ := g.Node(id)
		nodes = append(nodes, n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"start": g.StartNode(), "nodes": nodes})
}

// -- Helpers --

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid session key"})
		return nil, false
	}
	sess, ok := s.Engine.Session(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "session not found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrRuleFailed),
		errors.Is(err, domain.ErrFlowEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotHydrated):
		return http.StatusTooEarly
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusLocked
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func view(sess *session.Session) SessionView {
	id := sess.Identity()
	v := SessionView{
		Key:        id.StateKey(),
		UserID:     id.UserID,
		ScenarioID: id.ScenarioID,
		SessionID:  id.SessionID,
		Guest:      sess.Guest(),
		IsEnd:      sess.IsEnd(),
		Outcome:    sess.Outcome(),
		Source:     sess.Source(),
		Persisted:  sess.Persisted(),
		State:      sess.Snapshot(),
	}
	if node, err := sess.Node(); err == nil {
		v.Node = &node
	}
	return v
}
