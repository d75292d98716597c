// Package errs classifies failures raised while operating a device.
package errs

import (
	"errors"
	"strings"
)

// Kind is the category of a failure.
type Kind uint8

const (
	KindOther      Kind = iota // Unclassified error
	KindTransport              // Channel, spawn or stdin write failure
	KindValidation             // Bad caller input
	KindProtocol               // Device reported explicit failure text
	KindTimeout                // Confirmation race exceeded its bound
	KindParse                  // Unparseable device payload
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	default:
		return "other"
	}
}

// Op names the operation where the failure happened.
type Op string

// Error is a classified failure.
type Error struct {
	Op      Op     // Where did it happen?
	Kind    Kind   // What category is it?
	Err     error  // The underlying error
	Message string // Human-readable message
}

// E builds an *Error from any mix of Op, Kind, error and string arguments.
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		case string:
			e.Message = arg
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(string(e.Op))
	}

	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}

	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return KindOther
		}
		if e.Kind != KindOther {
			return e.Kind
		}
		err = e.Err
	}
	return KindOther
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the message of the outermost classified error in the
// chain, or err.Error() when there is none.
func Message(err error) string {
	var e *Error
	for cur := err; cur != nil; cur = e.Err {
		if !errors.As(cur, &e) {
			break
		}
		if e.Kind != KindOther && e.Message != "" {
			return e.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
