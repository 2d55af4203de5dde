// Package server exposes the remediation engine over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/virtual-kubelet/virtual-kubelet/errdefs"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/engine"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/logger"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
	APIToken   string
}

// Server is the HTTP front end of the remediation engine.
type Server struct {
	cfg    Config
	engine *engine.Engine
	log    *logrus.Entry
	srv    *http.Server
}

// New creates the server and wires its routes. The remediation endpoints
// require the bearer token; health and metrics do not.
func New(cfg Config, eng *engine.Engine, log *logrus.Logger) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API token is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{cfg: cfg, engine: eng, log: logger.WithComponent(log, "server")}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	router.Handle("/metrics", eng.Metrics().Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.validateToken)
	api.HandleFunc("/remediations", s.handleRemediate).Methods("POST")

	// The path the original dashboard posts to.
	router.Handle("/manage", s.validateToken(http.HandlerFunc(s.handleRemediate))).Methods("POST")

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.RecoveryHandler(handlers.RecoveryLogger(s.log))(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run starts serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Run() error {
	s.log.Infof("Listening on %s", s.cfg.ListenAddr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// validateToken rejects requests whose bearer token does not match the
// configured shared secret. Authentication is a pure precondition: it runs
// before any cluster call and a failure has no other effect.
func (s *Server) validateToken(next http.Handler) http.Handler {
	const prefix = "Bearer "
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(header, prefix)), []byte(s.cfg.APIToken)) != 1 {
			s.engine.Metrics().IncAuthFailure()
			s.log.Warnf("Rejected %s %s: bad or missing bearer token", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemediate(w http.ResponseWriter, r *http.Request) {
	var req models.RemediationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out := s.engine.Remediate(r.Context(), req)
	if !out.Succeeded() {
		status := http.StatusInternalServerError
		if errdefs.IsInvalidInput(out.Err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, out.Message())
		return
	}

	writeJSON(w, http.StatusOK, remediationResponse{
		Status:    string(out.Status),
		Message:   out.Message(),
		Action:    string(out.Action),
		Resource:  out.Resource,
		Namespace: out.Namespace,
		Previous:  out.PreviousValue,
		New:       out.NewValue,
		Attempts:  out.Attempts,
	})
}

// remediationResponse is the success body. Status and Message mirror what
// the dashboard consumed historically; the rest is for operators.
type remediationResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Namespace string `json:"namespace"`
	Previous  string `json:"previous,omitempty"`
	New       string `json:"new,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: detail})
}
