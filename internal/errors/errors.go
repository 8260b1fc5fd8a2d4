// Package errors provides centralized error definitions and error handling utilities
// for the league bot. It defines roster and workflow errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - RosterError: errors raised by the roster store (teams, players, caps)
//   - WorkflowError: errors raised by trade and signing workflows
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input
//   - StateError: operation not valid in the current roster or workflow state
//   - AuthorizationError: caller lacks the required role
//   - TimeoutError: a wait for a human response expired
//   - CapExceededError: advisory notice that a team is over its star cap
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewNotFoundError("team", "Hawks").WithCause(errors.ErrTeamNotFound)
//	err := errors.NewStateError("player already on a team").WithCause(errors.ErrPlayerOnTeam)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//	if errors.Is(err, errors.ErrTeamNotFound) { ... }
//
//	var capErr *errors.CapExceededError
//	if errors.As(err, &capErr) { ... }
//
//	switch errors.KindOf(err) {
//	case errors.KindTimeout:
//	    ...
//	}
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - UserFacing: errors safe to display in chat
//   - Severity: Debug, Info, Warning, Error, Critical
//   - Kind: the coarse error kind surfaced to users and metrics
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Roster-related sentinel errors
var (
	// ErrTeamNotFound indicates that no team has the given name.
	ErrTeamNotFound = New("team not found")
	// ErrTeamExists indicates that a team name is already taken.
	ErrTeamExists = New("team already exists")
	// ErrPlayerNotFound indicates that a player has never been registered.
	ErrPlayerNotFound = New("player not found")
	// ErrPlayerNotInTeam indicates that a player is not on the named team.
	ErrPlayerNotInTeam = New("player not in team")
	// ErrPlayerOnTeam indicates that a player already belongs to a team.
	ErrPlayerOnTeam = New("player already on a team")
	// ErrNotMember indicates that a captain candidate is not on the team.
	ErrNotMember = New("player is not a member of the team")
	// ErrNegativeStars indicates a star rating below zero.
	ErrNegativeStars = New("star rating must not be negative")
	// ErrInconsistentGroup indicates a trade group that is empty, spans
	// several teams, or shares its source team with the other group.
	ErrInconsistentGroup = New("inconsistent trade group")
)

// Workflow-related sentinel errors
var (
	// ErrNotCaptain indicates that the requester is not a captain, or not the
	// captain of the team they are trading from.
	ErrNotCaptain = New("requester is not a team captain")
	// ErrNoCaptain indicates that the counterparty team has no captain.
	ErrNoCaptain = New("team has no captain")
	// ErrNoGroupTeam indicates that a mentioned group could not be mapped to a team.
	ErrNoGroupTeam = New("could not determine the team of the group")
	// ErrDeclined indicates that a responder answered no.
	ErrDeclined = New("declined")
)

// General sentinel errors
var (
	// ErrNotFound indicates that a resource could not be found.
	ErrNotFound = New("not found")
	// ErrAlreadyExists indicates that a resource already exists.
	ErrAlreadyExists = New("already exists")
	// ErrInvalidState indicates an operation that is not valid right now.
	ErrInvalidState = New("invalid state")
	// ErrNotAuthorized indicates that the caller lacks a required role.
	ErrNotAuthorized = New("not authorized")
	// ErrCapExceeded indicates that a team's star total is above its cap.
	ErrCapExceeded = New("roster cap exceeded")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrRateLimited indicates that a user sent too many commands.
	ErrRateLimited = New("rate limited")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LeagueError is the base interface for all errors defined by this package.
type LeagueError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// in chat.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Message returns the error's own message, without context or cause.
func (e *baseError) Message() string {
	return e.message
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RosterError represents a failed roster store mutation.
//
// Example:
//
//	err := errors.NewRosterError("apply trade", errors.ErrInconsistentGroup).WithTeam("Hawks")
//	fmt.Println(err) // "roster error [team=Hawks]: apply trade: inconsistent trade group"
type RosterError struct {
	baseError
	Team   string
	Player string
}

// NewRosterError creates a new RosterError.
func NewRosterError(message string, cause error) *RosterError {
	return &RosterError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTeam adds a team name to the error context.
func (e *RosterError) WithTeam(team string) *RosterError {
	e.Team = team
	return e
}

// WithPlayer adds a player ID to the error context.
func (e *RosterError) WithPlayer(id string) *RosterError {
	e.Player = id
	return e
}

// Error returns the formatted error message.
func (e *RosterError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, fmt.Sprintf("team=%s", e.Team))
	}
	if e.Player != "" {
		parts = append(parts, fmt.Sprintf("player=%s", e.Player))
	}
	return formatPrefixed("roster error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *RosterError) Is(target error) bool {
	if _, ok := target.(*RosterError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkflowError represents a failure inside a trade or signing workflow.
//
// Example:
//
//	err := errors.NewWorkflowError("commit failed", cause).
//		WithWorkflow("trade", "3f2a").WithState("voting")
type WorkflowError struct {
	baseError
	Workflow string
	ID       string
	State    string
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithWorkflow adds the workflow kind and ID to the error context.
func (e *WorkflowError) WithWorkflow(kind, id string) *WorkflowError {
	e.Workflow = kind
	e.ID = id
	return e
}

// WithState adds the workflow state at the time of failure.
func (e *WorkflowError) WithState(state string) *WorkflowError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *WorkflowError) WithSeverity(s Severity) *WorkflowError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *WorkflowError) Error() string {
	var parts []string
	if e.Workflow != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", e.Workflow, e.ID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return formatPrefixed("workflow error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *WorkflowError) Is(target error) bool {
	if _, ok := target.(*WorkflowError); ok {
		return true
	}
	return e.baseError.Is(target)
}

func formatPrefixed(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("team", "Hawks")
//	fmt.Println(err) // "team 'Hawks' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("team", "Hawks")
//	fmt.Println(err) // "team 'Hawks' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	if target == ErrAlreadyExists {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("stars must be a whole number").WithField("stars").WithValue("x")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// StateError represents an operation that the current roster or workflow
// state does not allow, such as adding a player who is already on a team or
// trading groups that share a source team.
type StateError struct {
	baseError
}

// NewStateError creates a new StateError.
func NewStateError(message string) *StateError {
	return &StateError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithCause adds a cause to the error.
func (e *StateError) WithCause(cause error) *StateError {
	e.cause = cause
	return e
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	if target == ErrInvalidState {
		return true
	}
	return e.baseError.Is(target)
}

// AuthorizationError represents a caller that lacks the role or captaincy
// an operation requires.
//
// Example:
//
//	err := errors.NewAuthorizationError("u42", "Franchise Owner")
//	fmt.Println(err) // "user u42 is not authorized: requires Franchise Owner"
type AuthorizationError struct {
	baseError
	UserID   string
	Required string
}

// NewAuthorizationError creates a new AuthorizationError.
func NewAuthorizationError(userID, required string) *AuthorizationError {
	return &AuthorizationError{
		baseError: baseError{
			message:    "not authorized",
			severity:   SeverityWarning,
			userFacing: true,
		},
		UserID:   userID,
		Required: required,
	}
}

// WithCause adds a cause to the error.
func (e *AuthorizationError) WithCause(cause error) *AuthorizationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AuthorizationError) Error() string {
	base := fmt.Sprintf("user %s is not authorized", e.UserID)
	if e.Required != "" {
		base = fmt.Sprintf("%s: requires %s", base, e.Required)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Message returns the user and required role without the cause.
func (e *AuthorizationError) Message() string {
	if e.Required == "" {
		return fmt.Sprintf("user %s is not authorized", e.UserID)
	}
	return fmt.Sprintf("user %s is not authorized: requires %s", e.UserID, e.Required)
}

// Is checks if this error matches the target.
func (e *AuthorizationError) Is(target error) bool {
	if _, ok := target.(*AuthorizationError); ok {
		return true
	}
	if target == ErrNotAuthorized {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents a wait that expired before a matching response.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for group B mentions", 60*time.Second)
//	fmt.Println(err) // "timeout error: waiting for group B mentions (timeout: 1m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityInfo,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// CapExceededError reports a team whose star total is above its roster cap.
// It is advisory: the mutation that produced it has already been applied.
type CapExceededError struct {
	baseError
	Team  string
	Total int
	Cap   int
}

// NewCapExceededError creates a new CapExceededError.
func NewCapExceededError(team string, total, limit int) *CapExceededError {
	return &CapExceededError{
		baseError: baseError{
			message:    "roster cap exceeded",
			severity:   SeverityInfo,
			userFacing: true,
		},
		Team:  team,
		Total: total,
		Cap:   limit,
	}
}

// Error returns the formatted error message.
func (e *CapExceededError) Error() string {
	return fmt.Sprintf("team %s exceeds its roster cap (%d/%d)", e.Team, e.Total, e.Cap)
}

// Message returns the warning posted to chat.
func (e *CapExceededError) Message() string {
	return fmt.Sprintf("Warning: Team %s exceeds the roster cap of %d stars (%d/%d). They cannot play anymore.",
		e.Team, e.Cap, e.Total, e.Cap)
}

// Is checks if this error matches the target.
func (e *CapExceededError) Is(target error) bool {
	if _, ok := target.(*CapExceededError); ok {
		return true
	}
	return target == ErrCapExceeded
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Kind is the coarse classification of an error used in chat replies,
// workflow outcomes and metric labels.
type Kind string

// Error kinds.
const (
	KindNone          Kind = ""
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindInvalidInput  Kind = "invalid_input"
	KindInvalidState  Kind = "invalid_state"
	KindNotAuthorized Kind = "not_authorized"
	KindTimeout       Kind = "timeout"
	KindCapExceeded   Kind = "cap_exceeded"
	KindInternal      Kind = "internal"
)

// KindOf classifies err. Timeouts win over other kinds so a wrapped
// timeout inside a workflow error is still reported as a timeout.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case Is(err, ErrTimeout), Is(err, ErrCanceled):
		return KindTimeout
	case Is(err, ErrNotFound):
		return KindNotFound
	case Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case Is(err, ErrInvalidState):
		return KindInvalidState
	case Is(err, ErrInvalidInput):
		return KindInvalidInput
	case Is(err, ErrCapExceeded):
		return KindCapExceeded
	default:
		return KindInternal
	}
}

// IsUserFacing returns true if the error message is safe to display in chat.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    reply(err.Error())
//	} else {
//	    reply("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var leagueErr LeagueError
	if As(err, &leagueErr) {
		return leagueErr.IsUserFacing()
	}

	return false
}

// UserMessage returns the message of the first error in err's chain that
// carries one, or "" when there is none or it is not user-facing.
func UserMessage(err error) string {
	var m interface {
		Message() string
		IsUserFacing() bool
	}
	if As(err, &m) && m.IsUserFacing() {
		return m.Message()
	}
	return ""
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LeagueError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var leagueErr LeagueError
	if As(err, &leagueErr) {
		return leagueErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
