package handlers

import (
	"net/http"
	"time"

	"streakTracker/internal/logger"

	"go.uber.org/zap"
)

// CronHandler exposes the midnight sweep to an external scheduler. The route
// is expected behind middleware.CronAuth.
type CronHandler struct {
	sweeper Sweeper
	now     func() time.Time
}

func NewCronHandler(sweeper Sweeper) CronHandler {
	return CronHandler{
		sweeper: sweeper,
		now:     time.Now,
	}
}

// WithClock replaces the time source of the handler.
func (c CronHandler) WithClock(now func() time.Time) CronHandler {
	c.now = now
	return c
}

func (c *CronHandler) CheckStreaks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	report, err := c.sweeper.Sweep(r.Context(), c.now())
	if err != nil {
		logger.Error("HTTP: streak sweep failed", err,
			zap.String("client_ip", r.RemoteAddr))

		responseWithJSON(w, http.StatusInternalServerError,
			toPayload("success", false),
			toPayload("error", "failed to check streaks"))
		return
	}

	logger.Info("HTTP_OUT: streak sweep done",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("success", true),
		toPayload("processed", report.Processed),
		toPayload("skipped", report.Skipped),
		toPayload("failed", report.Failed),
		toPayload("results", report.Results),
		toPayload("timestamp", report.Timestamp))
}
