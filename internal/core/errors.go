package core

import (
	"errors"
	"log/slog"

	"github.com/asesorlegal/backend/internal/llm"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindRateLimited
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is returned by the pipelines. Message is a stable, client-safe
// description; Err carries the cause for logs and development responses.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: cause}
}

// upstreamError maps a completion failure onto a pipeline error.
func upstreamError(err error) *Error {
	switch llm.KindOf(err) {
	case llm.KindContextLength:
		return &Error{Kind: KindValidation, Message: "conversation too long", Err: err}
	case llm.KindRateLimited:
		return &Error{Kind: KindRateLimited, Message: "rate limit exceeded", Retryable: true, Err: err}
	case llm.KindTimeout:
		return &Error{Kind: KindUpstream, Message: "upstream timeout", Retryable: true, Err: err}
	default:
		return &Error{Kind: KindUpstream, Message: "upstream error", Err: err}
	}
}

// KindOf returns the pipeline kind of err, KindUpstream for foreign errors.
func KindOf(err error) ErrorKind {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}
	return KindUpstream
}

func logUpstream(op, userID string, err error) {
	slog.Error("completion failed",
		"op", op,
		"user_id", userID,
		"kind", llm.KindOf(err).String(),
		"error", err,
	)
}
