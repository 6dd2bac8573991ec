package handlers

import (
	"errors"
	"net/http"

	"streakTracker/internal/logger"
	"streakTracker/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError writes the response for a *service.BusinessError and
// reports whether err was one.
func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeAlreadyCompleted, service.CodeNotCompleted:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
