package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories surfaced to the host.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindConfig
	KindPlugin
	KindProject
	KindDocument
	KindLayout
	KindEvent
	KindIO
	KindJSON
	KindTOML
	KindArchive
	KindWatch
	KindValidation
	KindNotFound
	KindAlreadyExists
	KindPermissionDenied
	KindTimeout
	KindNetwork
	KindDatabase
)

var kindNames = [...]string{
	KindGeneric:          "generic",
	KindConfig:           "config",
	KindPlugin:           "plugin",
	KindProject:          "project",
	KindDocument:         "document",
	KindLayout:           "layout",
	KindEvent:            "event",
	KindIO:               "io",
	KindJSON:             "json",
	KindTOML:             "toml",
	KindArchive:          "archive",
	KindWatch:            "watch",
	KindValidation:       "validation",
	KindNotFound:         "not_found",
	KindAlreadyExists:    "already_exists",
	KindPermissionDenied: "permission_denied",
	KindTimeout:          "timeout",
	KindNetwork:          "network",
	KindDatabase:         "database",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Sentinel errors used for control flow. They are usually found wrapped
// inside an *Error carrying the category.
var (
	ErrNotInitialized   = errors.New("not initialized")
	ErrNotFound         = errors.New("not found")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNoFilePath       = errors.New("document has no file path")
	ErrCapacity         = errors.New("capacity exceeded")
	ErrCyclicDependency = errors.New("cyclic plugin dependency")
)

// Error is the categorized error returned by managers.
type Error struct {
	Kind    Kind
	Field   string // set for KindValidation
	Message string
	Err     error

	// set by Errorf when Message already renders Err
	inline bool
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindValidation && e.Field != "" {
		msg = e.Field + ": " + msg
	}
	switch {
	case e.inline:
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	case msg == "" && e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, msg, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind that carries no message,
// so errors.Is(err, &core.Error{Kind: core.KindDocument}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Field == "" && t.Err == nil
}

// Errorf builds a categorized error. A %w verb in format is honored.
func Errorf(kind Kind, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	inner := errors.Unwrap(wrapped)
	return &Error{Kind: kind, Message: wrapped.Error(), Err: inner, inline: inner != nil}
}

// Wrap categorizes err with a message. It returns nil when err is nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation reports an invalid field value.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// KindOf returns the category of the outermost *Error in the chain, or
// KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// IsKind reports whether any *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
