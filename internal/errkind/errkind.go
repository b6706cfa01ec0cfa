// Package errkind classifies agent errors into the handful of kinds the
// command dispatcher needs to turn a failure into a report.
package errkind

import (
	"errors"
	"fmt"
)

// Kind tags an error with how the event loop should react to it.
type Kind int

const (
	// Validation covers malformed payloads, out-of-range values, missing
	// required fields. Surfaced as an error report; not a systemic failure.
	Validation Kind = iota
	// Policy covers firewall or risk-gate rejections.
	Policy
	// Transport covers bus publish failures, HTTP timeouts, connection
	// resets. Retried with backoff where applicable; non-fatal in the loop.
	Transport
	// Remote covers exchange HTTP 4xx/5xx responses.
	Remote
	// StateInvariant covers should-never-happen conditions (fill for a
	// nonexistent order, negative balance). Logged at warn, operation
	// aborted without crashing the process.
	StateInvariant
	// Fatal covers invalid private keys or unreadable config. Terminates
	// the process with a nonzero exit code.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Policy:
		return "policy"
	case Transport:
		return "transport"
	case Remote:
		return "remote"
	case StateInvariant:
		return "state_invariant"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

func New(op string, err error) *Error            { return newErr(Validation, op, err) }
func Validationf(op string, err error) *Error    { return newErr(Validation, op, err) }
func Policyf(op string, err error) *Error        { return newErr(Policy, op, err) }
func Transportf(op string, err error) *Error     { return newErr(Transport, op, err) }
func Remotef(op string, err error) *Error        { return newErr(Remote, op, err) }
func StateInvariantf(op string, err error) *Error { return newErr(StateInvariant, op, err) }
func Fatalf(op string, err error) *Error         { return newErr(Fatal, op, err) }

// KindOf extracts the Kind from err, defaulting to StateInvariant for
// errors that were never classified — those represent bugs, not expected
// failures, and the dispatcher treats the unexpected case conservatively.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StateInvariant
}
