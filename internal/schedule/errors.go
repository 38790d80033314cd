package schedule

import "fmt"

// Stable error codes. The HTTP adapter maps these to status codes; the core
// never does its own status mapping.
const (
	CodePlanInvalid           = "PLAN_INVALID"
	CodeTemplateUnsupported   = "TEMPLATE_UNSUPPORTED"
	CodeInvalidTeamCount      = "INVALID_TEAM_COUNT"
	CodeSelfEdge              = "SELF_EDGE"
	CodeDuplicateEdge         = "DUPLICATE_EDGE"
	CodeGroupCapacityMismatch = "GROUP_CAPACITY_MISMATCH"
	CodeVersionNotDraft       = "SCHEDULE_VERSION_NOT_DRAFT"
	CodeSourceVersionNotFinal = "SOURCE_VERSION_NOT_FINAL"
	CodeNotFound              = "NOT_FOUND"
	CodeAssignmentOverlap     = "ASSIGNMENT_OVERLAP"
	CodeLockTimeout           = "LOCK_TIMEOUT"
	CodeInternal              = "INTERNAL"
)

// Unassigned-match reason codes
const (
	ReasonSlotsExhausted       = "SLOTS_EXHAUSTED"
	ReasonDurationTooLong      = "DURATION_TOO_LONG"
	ReasonNoRestCompatibleSlot = "NO_REST_COMPATIBLE_SLOT"
	ReasonNoCompatibleSlot     = "NO_COMPATIBLE_SLOT"
)

// Warning codes
const (
	WarnNoTeamsForEvent   = "NO_TEAMS_FOR_EVENT"
	WarnCapacityOver      = "CAPACITY_OVER"
	WarnCapacityUnder     = "CAPACITY_UNDER"
	WarnLegacyTemplate    = "LEGACY_TEMPLATE"
	WarnInjectionSkipped  = "INJECTION_SKIPPED"
	WarnNoSlotsForVersion = "NO_SLOTS_FOR_VERSION"
	WarnNoMatchesToAssign = "NO_MATCHES_FOR_VERSION"
)

// Error is the structured failure value every public entry returns on the
// failure path. Code is stable; Context names the offending entity or field.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Context)
}

// NewError creates a coded error
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a coded error with a formatted message
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of the error with one context entry added.
// Copying keeps shared sentinel errors immutable.
func (e *Error) With(key string, value interface{}) *Error {
	ctx := make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}

// AsError extracts a *Error from any error, wrapping unknown errors as INTERNAL
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// Common sentinel failures
var (
	ErrTournamentNotFound = NewError(CodeNotFound, "tournament not found")
	ErrEventNotFound      = NewError(CodeNotFound, "event not found")
	ErrVersionNotFound    = NewError(CodeNotFound, "schedule version not found")
	ErrTeamNotFound       = NewError(CodeNotFound, "team not found")
	ErrVersionNotDraft    = NewError(CodeVersionNotDraft, "schedule version is not a draft")
	ErrSourceNotFinal     = NewError(CodeSourceVersionNotFinal, "source schedule version is not finalized")
	ErrSelfEdge           = NewError(CodeSelfEdge, "avoid edge cannot reference the same team twice")
	ErrDuplicateEdge      = NewError(CodeDuplicateEdge, "avoid edge already exists for this pair")
)

// Issue is one blocking error or warning in a validation report
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
