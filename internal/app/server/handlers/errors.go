package handlers

import (
	"errors"
	"net/http"

	"assist/internal/core/domain"
	"assist/pkg/logging"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	status int
	code   string
}

var errorTable = map[error]apiError{
	domain.ErrTicketNotFound:        {http.StatusNotFound, "TicketNotFound"},
	domain.ErrTenantNotFound:        {http.StatusNotFound, "TenantNotFound"},
	domain.ErrUserNotFound:          {http.StatusNotFound, "UserNotFound"},
	domain.ErrSettingsNotFound:      {http.StatusNotFound, "SettingsNotFound"},
	domain.ErrFilesNotFound:         {http.StatusBadRequest, "FilesNotFound"},
	domain.ErrKeyAlreadyExists:      {http.StatusConflict, "KeyAlreadyExists"},
	domain.ErrMessageCreationFailed: {http.StatusUnprocessableEntity, "MessageCreationFailed"},
	domain.ErrInvalidTicketID:       {http.StatusBadRequest, "InvalidTicketId"},
	domain.ErrInvalidUserID:         {http.StatusBadRequest, "InvalidUserId"},
	domain.ErrInvalidStatus:         {http.StatusBadRequest, "InvalidStatus"},
	domain.ErrEmptyMessage:          {http.StatusBadRequest, "EmptyMessage"},
}

// respondError writes the {error, message} payload for err. Unknown errors
// are logged and reported as 500 without details.
func respondError(c *gin.Context, err error) {
	for sentinel, e := range errorTable {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(e.status, gin.H{"error": e.code, "message": err.Error()})
			return
		}
	}
	logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "handlers - respond error - unexpected", logging.Err(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "InternalError", "message": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ValidationError", "message": err.Error()})
}
