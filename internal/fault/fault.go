// Package fault defines the outcome taxonomy shared by every action in the
// check-in pipeline and the classifier that folds lower-level failures into it.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the stable classification of a failed (or short-circuited) action.
type Kind int

const (
	// Unknown is the zero value; classified errors never carry it.
	Unknown Kind = iota
	Validation
	NotFound
	AlreadyProcessed
	PreconditionFailed
	RateLimited
	RemoteQuotaExceeded
	RemoteTransient
	ConfigurationMissing
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case NotFound:
		return "not_found"
	case AlreadyProcessed:
		return "already_processed"
	case PreconditionFailed:
		return "precondition_failed"
	case RateLimited:
		return "rate_limited"
	case RemoteQuotaExceeded:
		return "remote_quota_exceeded"
	case RemoteTransient:
		return "remote_transient"
	case ConfigurationMissing:
		return "configuration_missing"
	default:
		return "unknown"
	}
}

// Error is a classified failure with a user-presentable message. The wrapped
// cause, when present, is for diagnostics only and never reaches a response.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error, keeping it as the cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the classification from err, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// MessageOf returns the user-presentable message for err. Unclassified errors
// get the generic busy message so internal detail never leaks to end users.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return BusyMessage
}

// FromRemote classifies a failed round trip to the remote store. Quota
// rejections from the store get their own kind so operators can tell them
// apart from transient failures, even though both read the same to end
// users.
func FromRemote(err error, quota bool) *Error {
	if quota {
		return Wrap(RemoteQuotaExceeded, BusyMessage, err)
	}
	return Wrap(RemoteTransient, BusyMessage, err)
}

// Messages shown to end users. Rate-limit and quota rejections deliberately
// read the same; operators tell them apart in the audit trail.
const (
	BusyMessage      = "The system is busy, please retry in a few seconds."
	RateLimitMessage = "Too many people are checking in right now. Please wait a few seconds and try again; staff on site can also assist you."
)
