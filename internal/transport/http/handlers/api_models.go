package handlers

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error payload returned by every endpoint: a stable
// machine code, a human message and the request's trace ID.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusChangeRequest locks or unlocks an account.
type StatusChangeRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// DepartmentAssignRequest moves a user into a department.
type DepartmentAssignRequest struct {
	DepartmentID string `json:"departmentId"`
}

// ManagerAssignRequest assigns a reporting manager to an engineer.
type ManagerAssignRequest struct {
	ManagerID string `json:"managerId"`
}

// BulkManagerRequest moves every report of one manager under another.
type BulkManagerRequest struct {
	OldManagerID string `json:"oldManagerId"`
	NewManagerID string `json:"newManagerId"`
}

// RoleChangeRequest replaces a user's realm role.
type RoleChangeRequest struct {
	Role string `json:"role" binding:"required"`
}

// InviteRequest creates a remote identity and its local shadow row.
type InviteRequest struct {
	Email        string  `json:"email" binding:"required"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Username     string  `json:"username"`
	Role         string  `json:"role" binding:"required"`
	DepartmentID *string `json:"departmentId"`
	ManagerID    *string `json:"managerId"`
}

// DepartmentCreateRequest adds a department.
type DepartmentCreateRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// DepartmentUpdateRequest patches the mutable department fields.
type DepartmentUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}
