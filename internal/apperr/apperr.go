// Package apperr defines the application error taxonomy. Every externally
// visible failure carries a machine-readable code, a user-facing message, a
// developer-facing diagnostic, and an HTTP status, and travels unchanged from
// the point of detection to the transport boundary.
package apperr

import "errors"

// Code is a stable, machine-readable error code.
type Code string

// Error codes surfaced by the core. Rule codes are not exceptions: the rule
// engine returns them as data and the request is still persisted (rejected).
const (
	CodeExtractionUnparsable    Code = "EXTRACTION_UNPARSABLE"
	CodeExtractionInvalidSchema Code = "EXTRACTION_INVALID_SCHEMA"
	CodeRuleEmployeeNotFound    Code = "RULE_EMPLOYEE_NOT_FOUND"
	CodeRuleEmployeeAmbiguous   Code = "RULE_EMPLOYEE_AMBIGUOUS"
	CodeRuleSkillMismatch       Code = "RULE_SKILL_MISMATCH"
	CodeRuleCertExpired         Code = "RULE_CERT_EXPIRED"
	CodeRuleConflict            Code = "RULE_CONFLICT"
	CodeApprovalNotPending      Code = "APPROVAL_NOT_PENDING"
	CodeDBError                 Code = "DB_ERROR"
	CodeLLMTimeout              Code = "LLM_TIMEOUT"
	CodeLLMProviderError        Code = "LLM_PROVIDER_ERROR"
	CodeValidationError         Code = "VALIDATION_ERROR"
	CodeEmployeeNotFound        Code = "EMPLOYEE_NOT_FOUND"
	CodeEmployeeDuplicateName   Code = "EMPLOYEE_DUPLICATE_NAME"
)

// Error is the application error type. It implements error via the
// developer-facing message; the user message is what handlers render.
type Error struct {
	Code        Code
	UserMessage string
	DevMessage  string
	Status      int
}

// Error returns the developer-facing diagnostic.
func (e *Error) Error() string { return e.DevMessage }

// New constructs an Error with the given code, messages, and HTTP status.
func New(code Code, userMsg, devMsg string, status int) *Error {
	return &Error{Code: code, UserMessage: userMsg, DevMessage: devMsg, Status: status}
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
