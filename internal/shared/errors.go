package shared

import "errors"

// Error taxonomy shared by every engine. Package level errors wrap one of these so
// callers at the conversation and HTTP boundaries can classify failures with errors.Is.
var (
	// ErrNotFound indicates an unknown AOP, budget, employee or cost center.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate or a state clash, e.g. two active AOPs.
	ErrConflict = errors.New("conflict")
	// ErrRuleViolation indicates a business rule rejected the operation.
	ErrRuleViolation = errors.New("rule violation")
	// ErrMalformed indicates the command or payload could not be understood.
	ErrMalformed = errors.New("malformed request")
)
