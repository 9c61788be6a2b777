package apperr

// Stable machine codes surfaced to callers. Codes are part of the external
// contract and must not be renamed casually.
const (
	CodeInvalidUserID        = "INVALID_USERID"
	CodeInvalidRequestUserID = "INVALID_REQUEST_USERID"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeInvalidManagerID     = "INVALID_MANAGERID"
	CodeInvalidNewManagerID  = "INVALID_NEW_MANAGERID"
	CodeManagerNotFound      = "MANAGER_NOT_FOUND"
	CodeEngineerNotFound     = "ENGINEER_NOT_FOUND"
	CodeRoleMustDiffer       = "ROLE_MUST_DIFFERENT"
	CodeUserExists           = "USER_EXIST"
	CodeEmailTrigger         = "EMAIL_TRIGGER"
	CodeManagerHasEngineer   = "MANAGER_HAS_ENGINEER"
	CodeDeptNotAssigned      = "DEPARTMENT_NOT_ASSIGNED"
	CodeDeptIDRequired       = "DEPARTMENT_ID_REQUIRED"
	CodeManagerIDRequired    = "MANAGER_ID_REQUIRED"
	CodeRoleNotExist         = "ROLE_NOT_EXIST"
	CodeRoleNotAssignable    = "ROLE_CANNOT_BE_ASSIGNED"
	CodeManagerNotAssignable = "MANAGER_CANNOT_BE_ASSIGNED"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeRestrictedField      = "RESTRICTED_FIELD"

	CodeInvalidDept        = "INVALID_DEPT"
	CodeDeptNotFound       = "DEPT_NOT_FOUND"
	CodeDeptExists         = "DEPT_EXIST"
	CodeDeptInUse          = "DEPT_IN_USE"
	CodeInvalidDeptDetails = "INVALID_DEPT_DETAILS"

	CodeValidation = "VALIDATION_ERROR"

	CodeInternal = "INTERNAL_SERVER_ERROR"
)
