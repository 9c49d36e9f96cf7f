package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"usersapp/internal/middleware"
	"usersapp/internal/repository"
	"usersapp/internal/service"
	"usersapp/internal/validation"
)

// respondError maps domain errors to responses. Anything unrecognised is
// logged in full and reported to the client as a bare 500.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	if verr, ok := validation.AsError(err); ok {
		body := gin.H{"message": verr.Message}
		if len(verr.Fields) > 0 {
			body["fields"] = verr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "access denied"})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"message": "email already registered"})
	default:
		_ = c.Error(err)
		h.log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
