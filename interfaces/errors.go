package interfaces

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a challenge set, instance or attestation is absent.
	// It is an expected negative outcome and never fatal.
	ErrNotFound = errors.New("not found")

	// ErrBusinessRejection is returned when the oracle answered 2xx with success=false.
	ErrBusinessRejection = errors.New("rejected by oracle")

	// ErrInstanceTerminal is returned when evidence is submitted for an instance
	// that can no longer accept it.
	ErrInstanceTerminal = errors.New("challenge instance is terminal")

	// ErrValidation is returned for malformed requests, before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrTransport is returned for network failures, timeouts and undecodable bodies.
	ErrTransport = errors.New("oracle transport error")

	// ErrUpstream is returned when the oracle answered with a 5xx status.
	ErrUpstream = errors.New("oracle upstream error")

	// ErrServiceNotEnabled is returned when the challenge flow feature flag is off.
	ErrServiceNotEnabled = errors.New("service not enabled")

	// ErrPermissionDenied is returned when the caller lacks a required registry permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIdentityReused is returned when a DID was already used by an earlier run.
	ErrIdentityReused = errors.New("identity already used")
)

// ErrorKind classifies an oracle-facing failure.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindBusinessRejection ErrorKind = "BusinessRejection"
	KindTransport         ErrorKind = "TransportError"
	KindUpstream          ErrorKind = "UpstreamError"
	KindRequest           ErrorKind = "RequestError"
)

// OracleError is the typed outcome of a failed oracle call, decoded once at the
// client boundary so that stages never re-inspect raw response shapes.
type OracleError struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Hint    string
	Err     error
}

func (e *OracleError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " [hint: " + e.Hint + "]"
	}
	return msg
}

// Unwrap exposes the sentinel matching the error kind and the underlying cause.
func (e *OracleError) Unwrap() []error {
	var errs []error
	switch e.Kind {
	case KindNotFound:
		errs = append(errs, ErrNotFound)
	case KindBusinessRejection:
		errs = append(errs, ErrBusinessRejection)
	case KindTransport:
		errs = append(errs, ErrTransport)
	case KindUpstream:
		errs = append(errs, ErrUpstream)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Reason returns the upstream message if any, otherwise the error text.
func (e *OracleError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// StatusHint maps an upstream HTTP status to an advisory hint.
// The hint never changes the error kind.
func StatusHint(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "format mismatch: check the request body against the oracle schema"
	case http.StatusNotFound:
		return "instance or challenge definition not found"
	case http.StatusConflict:
		return "state conflict: the instance changed state, re-fetch before retrying"
	case http.StatusUnprocessableEntity:
		return "validation failure: the oracle rejected the evidence content"
	case http.StatusInternalServerError:
		return "upstream internal error, retry later"
	default:
		if status >= 500 {
			return "upstream internal error, retry later"
		}
		return ""
	}
}

// InstanceTerminalError reports a local refusal to submit evidence for a terminal instance.
type InstanceTerminalError struct {
	InstanceID string
	State      InstanceState
	Hint       string
}

func (e *InstanceTerminalError) Error() string {
	msg := fmt.Sprintf("challenge instance %s is %s", e.InstanceID, e.State)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

func (e *InstanceTerminalError) Unwrap() error {
	return ErrInstanceTerminal
}

// TerminalHint returns the operator hint attached to a terminal state.
func TerminalHint(state InstanceState) string {
	switch state {
	case StateVerified, StateCompleted:
		return "already auto-verified, await attestation via notification channel"
	case StateExpired:
		return "create a new instance to retry"
	default:
		return ""
	}
}

// NewInstanceTerminalError builds the terminal condition for an instance state.
func NewInstanceTerminalError(instanceID string, state InstanceState) *InstanceTerminalError {
	return &InstanceTerminalError{
		InstanceID: instanceID,
		State:      state,
		Hint:       TerminalHint(state),
	}
}

// ValidationError identifies the offending element of a malformed request.
// Index is -1 when the request as a whole is invalid.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid response at index %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid response at index %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Hint extracts the advisory hint carried by err, if any.
func Hint(err error) string {
	var oerr *OracleError
	if errors.As(err, &oerr) {
		return oerr.Hint
	}
	var terr *InstanceTerminalError
	if errors.As(err, &terr) {
		return terr.Hint
	}
	return ""
}
