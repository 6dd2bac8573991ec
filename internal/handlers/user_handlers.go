package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"streakTracker/internal/handlers/dto"
	"streakTracker/internal/logger"

	"go.uber.org/zap"
)

// PostUser seeds a user row. Accounts themselves live with the auth proxy.
func (s *TaskHandler) PostUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.RegisterUserRequest
	if r.ContentLength != 0 {
		if !checkContentType(r, "application/json") {
			responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			logger.Warn("HTTP: failed to read JSON",
				zap.Error(err),
				zap.String("client_ip", r.RemoteAddr))

			responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	created, err := s.TaskService.RegisterUser(r.Context(), request.Timezone)
	if err != nil {
		s.serviceError(w, r, err, "register_user")
		return
	}

	logger.Info("HTTP_OUT: user registered",
		zap.String("user_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("user", dto.FromUser(created)))
}

func (s *TaskHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	u, err := s.TaskService.GetStreak(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err, "get_streak")
		return
	}

	logger.Info("HTTP_OUT: streak fetched",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("streak", dto.FromUser(u)))
}

func (s *TaskHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
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

	var request dto.UpdateTimezoneRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	u, err := s.TaskService.UpdateTimezone(r.Context(), userID, request.Timezone)
	if err != nil {
		s.serviceError(w, r, err, "update_timezone")
		return
	}

	logger.Info("HTTP_OUT: timezone updated",
		zap.String("timezone", u.Timezone),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("streak", dto.FromUser(u)))
}
