package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slamint/account-management/internal/apperr"
	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/transport/http/middleware"
	"github.com/slamint/account-management/internal/usecase"
)

// UserHandler serves the user directory and its guarded mutations.
type UserHandler struct {
	directory *usecase.DirectoryService
}

// NewUserHandler builds a UserHandler instance.
func NewUserHandler(directory *usecase.DirectoryService) *UserHandler {
	return &UserHandler{directory: directory}
}

func requireActor(c *gin.Context) (domain.User, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "Authentication required."))
	}
	return actor, ok
}

// parseSearchFilter reads the directory query parameters. Invalid enum or
// timestamp values are caller errors.
func parseSearchFilter(c *gin.Context) (port.UserSearchFilter, *apperr.Error) {
	filter := port.UserSearchFilter{
		Query: c.Query("q"),
		Sort:  c.Query("sort"),
		Order: c.Query("order"),
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeValidation, "page must be an integer.")
		}
		filter.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeValidation, "limit must be an integer.")
		}
		filter.Limit = limit
	}

	if raw := c.Query("role"); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeRoleNotExist, "Unknown role.")
		}
		filter.Role = &role
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeInvalidStatus, "Status must be one of: active, locked.")
		}
		filter.Status = &status
	}

	if raw := c.Query("departmentId"); raw != "" {
		filter.DepartmentID = &raw
	}
	if raw := c.Query("managerId"); raw != "" {
		filter.ManagerID = &raw
	}

	for param, target := range map[string]**time.Time{
		"createdFrom":   &filter.CreatedFrom,
		"createdTo":     &filter.CreatedTo,
		"lastLoginFrom": &filter.LastLoginFrom,
		"lastLoginTo":   &filter.LastLoginTo,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeValidation, param+" must be an RFC 3339 timestamp.")
		}
		*target = &ts
	}

	return filter, nil
}

// List runs the filtered, sorted, paginated directory query.
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter, appErr := parseSearchFilter(c)
	if appErr != nil {
		RespondWithError(c, appErr)
		return
	}

	result, err := h.directory.Search(c.Request.Context(), actor.Sub, filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get fetches one directory entry by id.
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	view, err := h.directory.GetByID(c.Request.Context(), c.Param("id"), actor.Sub)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ChangeStatus locks or unlocks an account.
func (h *UserHandler) ChangeStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "status is required."))
		return
	}

	view, err := h.directory.ChangeStatus(c.Request.Context(), actor, c.Param("id"), req.Status, req.Reason)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AssignDepartment moves a manager or engineer into another department.
func (h *UserHandler) AssignDepartment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req DepartmentAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "Request body must be a JSON object."))
		return
	}

	view, err := h.directory.UpdateDepartment(c.Request.Context(), actor, c.Param("id"), req.DepartmentID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AssignManager assigns an engineer to a manager.
func (h *UserHandler) AssignManager(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req ManagerAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "Request body must be a JSON object."))
		return
	}

	view, err := h.directory.UpdateManager(c.Request.Context(), actor, c.Param("id"), req.ManagerID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// BulkReassignManager moves every report of one manager under another.
func (h *UserHandler) BulkReassignManager(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req BulkManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "Request body must be a JSON object."))
		return
	}

	result, err := h.directory.BulkUpdateManager(c.Request.Context(), actor, req.OldManagerID, req.NewManagerID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChangeRole replaces a user's realm role through the identity provider.
func (h *UserHandler) ChangeRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req RoleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "role is required."))
		return
	}

	view, err := h.directory.ChangeRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Delete removes a user remotely and locally.
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if _, err := h.directory.DeleteUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted."})
}

// Invite creates a remote identity, seeds the local row and triggers the
// onboarding email.
func (h *UserHandler) Invite(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "email and role are required."))
		return
	}

	view, err := h.directory.InviteUser(c.Request.Context(), actor, usecase.InviteInput{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
		ManagerID:    req.ManagerID,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// ListRoles exposes the assignable realm-role catalog.
func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.directory.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roles": roles})
}
