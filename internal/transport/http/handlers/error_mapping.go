package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slamint/account-management/internal/apperr"
)

// RespondWithError maps a typed business error onto its HTTP status and the
// standard error payload. Untyped errors fall back to a generic 500 so internal
// details never leak to clients.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, apperr.CodeInternal,
			"An unexpected error occurred on the server. Please try again later."))
		return
	}

	if appErr.Kind == apperr.KindInternal {
		_ = c.Error(err)
	}

	c.JSON(statusForKind(appErr.Kind), NewErrorResponse(c, appErr.Code, appErr.Message))
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
