package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"streakTracker/internal/handlers/dto"
	"streakTracker/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	healthCheck(w, s.TaskService.HealthCheck(r.Context()))
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var request dto.CreateTaskRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := s.TaskService.CreateTask(r.Context(), userID, request.ToInput())
	if err != nil {
		s.serviceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.String("task_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", dto.FromTask(created)))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	found, err := s.TaskService.GetTask(r.Context(), userID, id)
	if err != nil {
		s.serviceError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: task fetched",
		zap.String("task_id", found.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(found)))
}

func (s *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	result, err := s.TaskService.CompleteTask(r.Context(), userID, id)
	if err != nil {
		s.serviceError(w, r, err, "complete_task")
		return
	}

	logger.Info("HTTP_OUT: task completed",
		zap.String("task_id", id.String()),
		zap.Bool("materialized", result.Next != nil),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	completion := dto.FromCompletion(result)
	responseWithJSON(w, http.StatusOK,
		toPayload("task", completion.Task),
		toPayload("next", completion.Next))
}

func (s *TaskHandler) UncompleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	reopened, err := s.TaskService.UncompleteTask(r.Context(), userID, id)
	if err != nil {
		s.serviceError(w, r, err, "uncomplete_task")
		return
	}

	logger.Info("HTTP_OUT: task reopened",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(reopened)))
}

// GetSchedule serves GET /schedule?from=&to= with optional RFC3339 bounds.
func (s *TaskHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	from, err := timeQuery(r, "from")
	if err != nil {
		s.badQuery(w, r, "from", err)
		return
	}
	to, err := timeQuery(r, "to")
	if err != nil {
		s.badQuery(w, r, "to", err)
		return
	}

	schedule, err := s.TaskService.GetSchedule(r.Context(), userID, from, to)
	if err != nil {
		s.serviceError(w, r, err, "get_schedule")
		return
	}

	logger.Info("HTTP_OUT: schedule built",
		zap.Int("count", len(schedule)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(schedule)),
		toPayload("count", len(schedule)))
}

func (s *TaskHandler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := currentUser(r)
	if !ok {
		logger.Warn("HTTP: request without user",
			zap.String("path", r.URL.Path),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnauthorized, "user is not identified")
		return uuid.Nil, false
	}
	return userID, true
}

func (s *TaskHandler) requireID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := idParam(r)
	if !ok {
		logger.Warn("HTTP: invalid id",
			zap.String("id", r.URL.Path),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "id must be a non-nil UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *TaskHandler) badQuery(w http.ResponseWriter, r *http.Request, key string, err error) {
	logger.Warn("HTTP: invalid query parameter",
		zap.String("query", key),
		zap.Error(err),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, http.StatusBadRequest, key+" must be an RFC3339 timestamp")
}

// serviceError answers business errors with their mapped status and anything
// else with 500.
func (s *TaskHandler) serviceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, err) {
		return
	}

	logger.Error("HTTP: service error", err,
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, http.StatusInternalServerError, "internal error")
}
