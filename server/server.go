// Package server exposes the agent runtime over HTTP: solve and chat
// endpoints per agent, a server-sent-events bridge onto each agent's event
// bus, health, and prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/danaruntime/dana/agent"
	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/events"
	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/metrics"
)

// ============================================================================
// SERVER
// ============================================================================

const shutdownGrace = 10 * time.Second

// Server hosts a set of agents behind an HTTP surface.
type Server struct {
	cfg     config.ServerConfig
	agents  *agent.Registry
	collect *metrics.Collectors
	log     *slog.Logger
	http    *http.Server
}

// New builds a server over the given agent registry. Collectors may be nil
// when metrics are not wanted; the /metrics route is then omitted.
func New(cfg config.ServerConfig, agents *agent.Registry, collect *metrics.Collectors) *Server {
	cfg.SetDefaults()
	s := &Server{
		cfg:     cfg,
		agents:  agents,
		collect: collect,
		log:     logger.ForComponent("server"),
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.routes(),
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/healthz", s.handleHealth)
	if s.collect != nil {
		r.Method(http.MethodGet, "/metrics", s.collect.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/agents", s.handleListAgents)
		r.Route("/agents/{name}", func(r chi.Router) {
			r.Post("/solve", s.handleSolve)
			r.Post("/chat", s.handleChat)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ============================================================================
// HANDLERS
// ============================================================================

type solveRequest struct {
	Problem string `json:"problem"`
}

type solveResponse struct {
	Result any `json:"result"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"agents": s.agents.Names()})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}

	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Problem == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "problem cannot be empty"})
		return
	}

	result, err := a.Solve(r.Context(), req.Problem)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, solveResponse{Result: result})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message cannot be empty"})
		return
	}

	reply, err := a.Chat(r.Context(), req.Message)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// handleEvents streams the agent's event bus as server-sent events until
// the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The bus dispatches callbacks synchronously; buffer so a slow client
	// never stalls the agent.
	ch := make(chan events.Event, 256)
	callback := func(e events.Event) {
		select {
		case ch <- e:
		default:
		}
	}
	if err := a.Bus().OnLog(callback); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	defer a.Bus().UnregisterLogCallback(callback)

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) lookupAgent(w http.ResponseWriter, r *http.Request) (*agent.Agent, bool) {
	name := chi.URLParam(r, "name")
	a, err := s.agents.GetAgent(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown agent '%s'", name)})
		return nil, false
	}
	return a, true
}

func statusFor(err error) int {
	switch {
	case agenterr.IsInvalidArgument(err), agenterr.IsInvalidFormat(err):
		return http.StatusBadRequest
	case agenterr.IsResourceUnavailable(err):
		return http.StatusServiceUnavailable
	case agenterr.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
