package tracker

import (
	"errors"
	"fmt"

	"video_tracker/internal/notify"
	"video_tracker/internal/storage"
	"video_tracker/internal/youtube"
)

// Kind is a stable error category exposed to callers.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindPersistence         Kind = "persistence_failure"
	KindDispatch            Kind = "dispatch_failure"
)

// Error is returned by every Service operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or the empty string for errors that did
// not come from a Service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalid(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// wrap classifies err by the sentinel it carries.
func wrap(op string, err error) error {
	kind := KindPersistence
	switch {
	case errors.Is(err, youtube.ErrInvalidVideoRef),
		errors.Is(err, youtube.ErrInvalidChannelRef),
		errors.Is(err, notify.ErrInvalidAddress):
		kind = KindInvalidInput
	case errors.Is(err, youtube.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, youtube.ErrUnavailable):
		kind = KindProviderUnavailable
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
