package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slamint/account-management/internal/transport/http/middleware"
	"github.com/slamint/account-management/internal/usecase"
)

// MeHandler serves the caller's own profile.
type MeHandler struct {
	directory *usecase.DirectoryService
}

// NewMeHandler builds a MeHandler instance.
func NewMeHandler(directory *usecase.DirectoryService) *MeHandler {
	return &MeHandler{directory: directory}
}

// Get returns the caller's own entry shaped by their role.
func (h *MeHandler) Get(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "Authentication required."))
		return
	}

	view, err := h.directory.GetSelf(c.Request.Context(), actor.Sub)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Update applies a self-service profile patch. Privileged fields are rejected
// by name.
func (h *MeHandler) Update(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "Authentication required."))
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "VALIDATION_ERROR", "Request body must be a JSON object."))
		return
	}

	view, err := h.directory.UpdateSelf(c.Request.Context(), actor, patch)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
