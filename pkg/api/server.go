package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/reelflow/reelflow/pkg/config"
	"github.com/reelflow/reelflow/pkg/logging"
	"github.com/reelflow/reelflow/pkg/metrics"
	"github.com/reelflow/reelflow/pkg/registry"
	"github.com/reelflow/reelflow/pkg/scheduler"
	"github.com/reelflow/reelflow/pkg/webhooks"
)

// Server represents the HTTP API server
type Server struct {
	config     *config.Config
	router     *mux.Router
	server     *http.Server
	registry   registry.WorkflowRegistry
	runs       *RunService
	scheduler  *scheduler.Scheduler
	dispatcher webhooks.WebhookDispatcher
	wsManager  *WebSocketManager
	sse        *SSEStreamer
	logger     logging.Logger
}

// NewServer creates a new API server. The scheduler and dispatcher may
// be nil, in which case the corresponding routes return 501.
func NewServer(
	cfg *config.Config,
	reg registry.WorkflowRegistry,
	runs *RunService,
	sched *scheduler.Scheduler,
	dispatcher webhooks.WebhookDispatcher,
	wsManager *WebSocketManager,
	sseStreamer *SSEStreamer,
	logger logging.Logger,
) *Server {
	s := &Server{
		config:     cfg,
		router:     mux.NewRouter(),
		registry:   reg,
		runs:       runs,
		scheduler:  sched,
		dispatcher: dispatcher,
		wsManager:  wsManager,
		sse:        sseStreamer,
		logger:     logger,
	}

	s.setupRoutes()
	return s
}

// Router returns the configured router, used directly in tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", logging.Field{Key: "addr", Value: addr})

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// Workflow routes
	workflows := api.PathPrefix("/workflows").Subrouter()
	workflows.HandleFunc("", s.handleListWorkflows).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("", s.handleCreateWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleGetWorkflow).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleUpdateWorkflow).Methods(http.MethodPut, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete, http.MethodOptions)
	workflows.HandleFunc("/{id}/run", s.handleRunWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}/webhooks", s.handleRegisterWebhook).Methods(http.MethodPost, http.MethodOptions)

	// Run routes
	runs := api.PathPrefix("/runs").Subrouter()
	runs.HandleFunc("", s.handleListRuns).Methods(http.MethodGet, http.MethodOptions)
	runs.HandleFunc("/{id}", s.handleGetRun).Methods(http.MethodGet, http.MethodOptions)
	runs.HandleFunc("/{id}", s.handleDeleteRun).Methods(http.MethodDelete, http.MethodOptions)

	// Schedule routes
	schedules := api.PathPrefix("/schedules").Subrouter()
	schedules.HandleFunc("", s.handleListSchedules).Methods(http.MethodGet, http.MethodOptions)
	schedules.HandleFunc("", s.handleCreateSchedule).Methods(http.MethodPost, http.MethodOptions)
	schedules.HandleFunc("/{id}", s.handleDeleteSchedule).Methods(http.MethodDelete, http.MethodOptions)

	// Live update endpoints
	if s.wsManager != nil {
		s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.wsManager.HandleWebSocket(w, r)
		})
	}
	if s.sse != nil {
		s.router.Handle("/events", s.sse.Handler())
	}

	// Prometheus metrics
	s.router.Handle("/metrics", metrics.Handler())

	// Request logging middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("request",
				logging.Field{Key: "method", Value: r.Method},
				logging.Field{Key: "path", Value: r.URL.Path},
			)
			next.ServeHTTP(w, r)
		})
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleListWorkflows handles listing workflows
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.List()
	if err != nil {
		http.Error(w, "Failed to list workflows", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleCreateWorkflow handles workflow creation. The request body is a
// YAML or JSON workflow definition.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	id, err := s.registry.Create(r.URL.Query().Get("name"), content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleGetWorkflow handles retrieving a workflow definition
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	def, err := s.registry.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateWorkflow handles replacing a workflow definition
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := s.registry.Update(id, content); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteWorkflow handles removing a workflow
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.registry.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunWorkflow starts a workflow run
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Task      string                 `json:"task,omitempty"`
		Payload   map[string]interface{} `json:"payload,omitempty"`
		Variables map[string]interface{} `json:"variables,omitempty"`
	}
	if r.Body != nil {
		// An empty body starts the run with no task payload
		json.NewDecoder(r.Body).Decode(&req)
	}

	payload := req.Payload
	if payload == nil && req.Task != "" {
		payload = map[string]interface{}{"task": req.Task}
	}

	runID, err := s.runs.StartRunWithOptions(r.Context(), id, req.Task, payload, req.Variables)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "running",
	})
}

// handleListRuns handles listing runs, optionally filtered by workflow
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.runs.ListRuns(r.URL.Query().Get("workflow_id"))
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetRun handles retrieving a run record
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.runs.GetRun(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleDeleteRun handles removing a run record
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.DeleteRun(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRegisterWebhook registers a callback URL for a workflow or node
func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		http.Error(w, "Webhooks are not configured", http.StatusNotImplemented)
		return
	}

	var req struct {
		NodeID string `json:"node_id,omitempty"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.dispatcher.RegisterWebhook(mux.Vars(r)["id"], req.NodeID, req.URL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleListSchedules handles listing schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "Scheduling is not configured", http.StatusNotImplemented)
		return
	}

	schedules, err := s.scheduler.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list schedules", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

// handleCreateSchedule handles creating a schedule
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "Scheduling is not configured", http.StatusNotImplemented)
		return
	}

	var req scheduler.Schedule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.WorkflowID == "" || req.Cron == "" {
		http.Error(w, "workflow_id and cron are required", http.StatusBadRequest)
		return
	}

	id, err := s.scheduler.Add(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleDeleteSchedule handles removing a schedule
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "Scheduling is not configured", http.StatusNotImplemented)
		return
	}

	if err := s.scheduler.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service errors to HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if IsNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
