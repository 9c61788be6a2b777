package usecase

import (
	uuid "github.com/google/uuid"

	"github.com/slamint/account-management/internal/apperr"
)

// validateID rejects malformed identifiers before they reach the store, under
// the caller-supplied machine code.
func validateID(id, code string) error {
	if id == "" {
		return apperr.BadRequest(code, "Identifier is required.")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.BadRequest(code, "Identifier is not a valid UUID.")
	}
	return nil
}
