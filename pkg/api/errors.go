package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dengjianbo3/magellan/pkg/session"
)

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// abortWithError maps session-layer errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found", Kind: "not_found"})
	case errors.Is(err, session.ErrCapacity):
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many concurrent sessions", Kind: "capacity"})
	case errors.Is(err, session.ErrInvalidState):
		c.JSON(http.StatusConflict, errorResponse{Error: "operation not valid in current session state", Kind: "invalid_state"})
	default:
		slog.Error("Unexpected handler error", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Kind: "internal_error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Kind: "validation"})
}
