package domain

import (
	"errors"
	"fmt"
)

// Channel faults. They fail the whole call and are never retried automatically.
var (
	// ErrTimedOut is matched by channel errors raised when no reply arrived in time.
	ErrTimedOut = errors.New("request timed out")
	// ErrDisconnected is matched by channel errors raised when the transport was lost.
	ErrDisconnected = errors.New("host disconnected")
	// ErrHostRejected is matched by channel errors raised when the host replied with an error.
	ErrHostRejected = errors.New("host rejected request")
)

// Item faults. They are recorded as failed outcomes and never leave the executor.
// The messages are part of the reply contract seen by callers.
var (
	ErrElementNotFound   = errors.New("Element not found") //nolint:staticcheck // wire message
	ErrParameterNotFound = errors.New("parameter not found")
	ErrReadOnly          = errors.New("parameter is read-only")
	ErrUnsupportedKind   = errors.New("unsupported operation kind")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ElementError ties an item fault to the element it concerns. Its message is
// the fault's own, so callers can match it exactly; the id travels separately.
type ElementError struct {
	ElementID int64
	Err       error
}

func (e *ElementError) Error() string { return e.Err.Error() }

func (e *ElementError) Unwrap() error { return e.Err }

// ElementNotFound reports that no element has the given id.
func ElementNotFound(id int64) error {
	return &ElementError{ElementID: id, Err: ErrElementNotFound}
}

// ErrMethodNotFound is returned by the host for an unknown method.
var ErrMethodNotFound = errors.New("method not found")

// ChannelFault classifies a ChannelError.
type ChannelFault int

// Channel fault kinds.
const (
	TimedOut ChannelFault = iota + 1
	Disconnected
	HostRejected
)

func (f ChannelFault) String() string {
	switch f {
	case TimedOut:
		return "timed_out"
	case Disconnected:
		return "disconnected"
	case HostRejected:
		return "host_rejected"
	default:
		return "unknown"
	}
}

func (f ChannelFault) sentinel() error {
	switch f {
	case TimedOut:
		return ErrTimedOut
	case Disconnected:
		return ErrDisconnected
	case HostRejected:
		return ErrHostRejected
	default:
		return nil
	}
}

// ChannelError is a fault of the transport or correlation layer.
type ChannelError struct {
	Kind    ChannelFault
	Method  string
	Message string // host message for HostRejected
	Err     error  // underlying cause, if any
}

// NewChannelError builds a ChannelError.
func NewChannelError(kind ChannelFault, method string, cause error) *ChannelError {
	return &ChannelError{Kind: kind, Method: method, Err: cause}
}

// Rejected builds a HostRejected error carrying the host message.
func Rejected(method, message string) *ChannelError {
	return &ChannelError{Kind: HostRejected, Method: method, Message: message}
}

func (e *ChannelError) Error() string {
	base := e.Kind.sentinel()
	if base == nil {
		base = errors.New("channel error")
	}
	msg := base.Error()
	if e.Method != "" {
		msg = fmt.Sprintf("%s: %s", e.Method, msg)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is / errors.As.
func (e *ChannelError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FaultOf reports the channel fault kind of err, if it is a ChannelError.
func FaultOf(err error) (ChannelFault, bool) {
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
