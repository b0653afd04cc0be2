package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"portfolio-tracker/auth"
	"portfolio-tracker/market"
	"portfolio-tracker/repository"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// statusFor maps domain errors to HTTP status codes. Storage and unknown
// errors become 500 with the caller's generic message.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return http.StatusBadRequest, true
	case errors.Is(err, repository.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, true
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, market.ErrPriceUnavailable):
		return http.StatusNotFound, true
	default:
		return http.StatusInternalServerError, false
	}
}

// respondError writes {"error": ...}. Known errors carry their own message;
// anything else is reported as fallback.
func respondError(c *gin.Context, err error, fallback string, extra gin.H) {
	status, known := statusFor(err)
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	if known {
		body["error"] = err.Error()
	} else {
		body["error"] = fallback
	}
	c.JSON(status, body)
}

// parseDate accepts an empty string (meaning today) or YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
