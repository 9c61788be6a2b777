package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slamint/account-management/internal/apperr"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/usecase"
)

// DepartmentHandler serves department CRUD.
type DepartmentHandler struct {
	departments *usecase.DepartmentService
}

// NewDepartmentHandler builds a DepartmentHandler instance.
func NewDepartmentHandler(departments *usecase.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments}
}

func parseDepartmentFilter(c *gin.Context) (port.DepartmentSearchFilter, *apperr.Error) {
	filter := port.DepartmentSearchFilter{
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

	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeValidation, "isActive must be a boolean.")
		}
		filter.IsActive = &active
	}

	for param, target := range map[string]**time.Time{
		"createdFrom": &filter.CreatedFrom,
		"createdTo":   &filter.CreatedTo,
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

// List returns the filtered, paginated department listing.
func (h *DepartmentHandler) List(c *gin.Context) {
	filter, appErr := parseDepartmentFilter(c)
	if appErr != nil {
		RespondWithError(c, appErr)
		return
	}

	page, err := h.departments.List(c.Request.Context(), filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get returns one department by id.
func (h *DepartmentHandler) Get(c *gin.Context) {
	dept, err := h.departments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dept)
}

// Create adds a department.
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req DepartmentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeInvalidDeptDetails, "code and name are required."))
		return
	}

	dept, err := h.departments.Create(c.Request.Context(), usecase.DepartmentInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dept)
}

// Update patches the mutable department fields.
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req DepartmentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, apperr.CodeValidation, "Request body must be a JSON object."))
		return
	}

	dept, err := h.departments.Update(c.Request.Context(), c.Param("id"), port.DepartmentUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dept)
}

// Delete removes a department unless users still reference it.
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.departments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Department deleted."})
}
