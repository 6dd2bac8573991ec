package handlers

import (
	"mime"
	"net/http"
	"time"

	"streakTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

// idParam reads the {id} URL parameter. The nil UUID is rejected too.
func idParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

// timeQuery parses an optional RFC3339 query parameter.
func timeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
