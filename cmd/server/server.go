package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jameskimau/inbox-rules/auth"
	"github.com/jameskimau/inbox-rules/internal/config"
	"github.com/jameskimau/inbox-rules/internal/logger"
	"github.com/jameskimau/inbox-rules/internal/metrics"
	"github.com/jameskimau/inbox-rules/rules"
)

// pinger is implemented by stores that can report their health
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	engine         *rules.Engine
	auth           *auth.Authenticator
	health         pinger // nil when the store has no remote dependency
	router         *chi.Mux
	requestTimeout time.Duration
}

// NewServer wires the HTTP routes over an engine and authenticator.
// store is pinged by the health check when it supports it.
func NewServer(engine *rules.Engine, authenticator *auth.Authenticator, store rules.RuleStore, requestTimeout time.Duration) *Server {
	s := &Server{
		engine:         engine,
		auth:           authenticator,
		requestTimeout: requestTimeout,
	}
	if p, ok := store.(pinger); ok {
		s.health = p
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = 60 * time.Second
	}

	s.setupRoutes()

	return s
}

// NewServerFromConfig opens the configured store and builds a Server.
// The returned close function releases the database connection, if any.
func NewServerFromConfig(ctx context.Context, cfg *config.Config) (*Server, func() error, error) {
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	var opts []rules.EngineOption
	if cfg.Cache.TTL.Duration > 0 {
		opts = append(opts, rules.WithCache(rules.NewInMemoryRulesCache(rules.CacheConfig{TTL: cfg.Cache.TTL.Duration})))
	}

	engine, err := rules.NewEngine(store, opts...)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Email:    cfg.Auth.Email,
		Password: cfg.Auth.Password,
		TokenTTL: cfg.Auth.TokenTTL.Duration,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return NewServer(engine, authenticator, store, cfg.Server.RequestTimeout.Duration), closeStore, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (rules.RuleStore, func() error, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory rule store, rules are lost on restart")
		return rules.NewInMemoryRuleStore(), func() error { return nil }, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return rules.NewPostgresRuleStore(db), db.Close, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(observe)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Patch("/rules/{id}/toggle", s.handleToggleRule)

			r.Post("/simulate", s.handleSimulate)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{OK: false, Error: err.Error()})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{OK: true})
}

// Login handler
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	token, expiresAt, err := s.auth.Login(req.Email, req.Password)
	switch {
	case err == nil:
		metrics.LoginAttempts.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
	case errors.Is(err, auth.ErrMissingCredentials):
		metrics.LoginAttempts.WithLabelValues("invalid_request").Inc()
		respondError(w, http.StatusBadRequest, "email and password are required", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		respondError(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, auth.ErrNotConfigured):
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		logger.Error("login attempted without configured credentials")
		respondError(w, http.StatusInternalServerError, "Auth credentials are not configured on the server", nil)
	default:
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		logger.Error("login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Token generation failed", nil)
	}
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := s.engine.CreateRule(r.Context(), req)
	if err != nil {
		respondRuleError(w, "failed to create rule", err)
		return
	}

	metrics.RuleMutationsTotal.WithLabelValues("create").Inc()
	respondJSON(w, http.StatusCreated, rule)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rulesList, err := s.engine.ListRules(r.Context())
	if err != nil {
		respondRuleError(w, "failed to list rules", err)
		return
	}
	if rulesList == nil {
		rulesList = []*rules.Rule{}
	}

	respondJSON(w, http.StatusOK, rulesList)
}

// Toggle rule handler
func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := s.engine.ToggleRule(r.Context(), id)
	if err != nil {
		respondRuleError(w, "failed to toggle rule", err)
		return
	}

	metrics.RuleMutationsTotal.WithLabelValues("toggle").Inc()
	respondJSON(w, http.StatusOK, rule)
}

// Simulation handler
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.engine.Simulate(r.Context(), req)
	if err != nil {
		respondRuleError(w, "simulation failed", err)
		return
	}

	metrics.RecordSimulation(len(result.Rules))
	respondJSON(w, http.StatusOK, result)
}

// respondRuleError maps engine and store errors to HTTP responses
func respondRuleError(w http.ResponseWriter, message string, err error) {
	var verr *rules.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: verr})
	case errors.Is(err, rules.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "Invalid rule id", nil)
	case errors.Is(err, rules.ErrNotFound):
		respondError(w, http.StatusNotFound, "Rule not found", nil)
	default:
		logger.Error(message, "error", err)
		respondError(w, http.StatusInternalServerError, message, nil)
	}
}

// Helper functions

// maxRequestBodyBytes caps every JSON request body
const maxRequestBodyBytes = 1 << 20

// decodeJSON decodes the request body into v, failing once the body
// exceeds maxRequestBodyBytes
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
