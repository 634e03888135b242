// Package api exposes the task supervisor over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
	"github.com/cometlabs/comet/internal/supervisor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// syncBrowseTimeout bounds how long /browse/sync holds the request open.
const syncBrowseTimeout = 5 * time.Minute

// Server routes HTTP requests to the supervisor.
type Server struct {
	sup      *supervisor.Supervisor
	logger   *zap.Logger
	metrics  *httpMetrics
	gatherer prometheus.Gatherer
}

// NewServer assembles the router and its dependencies.
func NewServer(sup *supervisor.Supervisor, reg *prometheus.Registry, logger *zap.Logger) *Server {
	return &Server{
		sup:      sup,
		logger:   logger.Named("api"),
		metrics:  newHTTPMetrics(reg),
		gatherer: reg,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/browse", s.handleBrowse)
		r.Post("/browse/sync", s.handleBrowseSync)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Post("/tasks/{taskID}/cancel", s.handleCancelTask)
		r.Delete("/tasks/{taskID}", s.handleDeleteTask)
	})
	return r
}

// NewHTTPServer wraps the router in an http.Server with the configured
// timeouts.
func (s *Server) NewHTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.sup.Health(r.Context())
	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, status, health)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBrowseRequest(w, r)
	if !ok {
		return
	}

	task, err := s.sup.Submit(r.Context(), req)
	if err != nil {
		s.submitError(w, err)
		return
	}
	JSON(w, http.StatusAccepted, task)
}

func (s *Server) handleBrowseSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBrowseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncBrowseTimeout)
	defer cancel()

	task, err := s.sup.SubmitAndWait(ctx, req)
	if errors.Is(err, context.DeadlineExceeded) {
		Error(w, http.StatusRequestTimeout, "request timed out, task continues in background")
		return
	}
	if err != nil {
		s.submitError(w, err)
		return
	}
	JSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := schemas.TaskFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := schemas.TaskStatus(raw)
		if !status.Valid() {
			Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	tasks, err := s.sup.List(r.Context(), filter)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*schemas.BrowseTask{}
	}
	JSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.sup.Status(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.taskError(w, err)
		return
	}
	JSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.sup.Cancel(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.taskError(w, err)
		return
	}
	JSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.sup.Delete(r.Context(), chi.URLParam(r, "taskID"))
	if errors.Is(err, supervisor.ErrTaskRunning) {
		Error(w, http.StatusConflict, "task is still running; cancel it first")
		return
	}
	if err != nil {
		s.taskError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) decodeBrowseRequest(w http.ResponseWriter, r *http.Request) (schemas.BrowseRequest, bool) {
	var req schemas.BrowseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Goal == "" {
		Error(w, http.StatusBadRequest, "goal must not be empty")
		return req, false
	}
	return req, true
}

func (s *Server) submitError(w http.ResponseWriter, err error) {
	if errors.Is(err, supervisor.ErrShuttingDown) {
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	Error(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) taskError(w http.ResponseWriter, err error) {
	if errors.Is(err, schemas.ErrTaskNotFound) {
		Error(w, http.StatusNotFound, "Task not found")
		return
	}
	Error(w, http.StatusInternalServerError, err.Error())
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
