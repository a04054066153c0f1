// Package errs defines the symbolic error kinds shared across the eups
// packages. Every kind in this package corresponds to a named failure
// mode in the product/tag data model: a lookup miss, a malformed version
// expression, a conflicting dependency graph, and so on.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can branch on failure mode without
// string matching.
type Kind int

const (
	// Other is used for errors that don't fit a more specific kind.
	Other Kind = iota
	// ProductNotFound means a name/version/flavor tuple is absent from
	// the consulted stack.
	ProductNotFound
	// TagNotRecognized means a tag name is not in the tag registry.
	TagNotRecognized
	// VersionConflict means the dependency graph demands two
	// incompatible versions of one product.
	VersionConflict
	// CyclicDependency means a cycle was detected and the active policy
	// forbids it.
	CyclicDependency
	// BadVersionExpr means a version predicate failed to parse.
	BadVersionExpr
	// IOError wraps a filesystem read/write failure.
	IOError
	// LockTimeout means an advisory lock could not be obtained within
	// the bounded wait.
	LockTimeout
	// AlreadyDeclared means a redeclare changed immutable fields without
	// force=true.
	AlreadyDeclared
	// RuntimeError covers ambiguous or malformed façade calls, such as
	// undeclare(name) with more than one version present.
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case ProductNotFound:
		return "ProductNotFound"
	case TagNotRecognized:
		return "TagNotRecognized"
	case VersionConflict:
		return "VersionConflict"
	case CyclicDependency:
		return "CyclicDependency"
	case BadVersionExpr:
		return "BadVersionExpr"
	case IOError:
		return "IOError"
	case LockTimeout:
		return "LockTimeout"
	case AlreadyDeclared:
		return "AlreadyDeclared"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// Error is the concrete error type returned by every package in this
// module. Op names the failing operation (e.g. "findProduct",
// "assignTag") so a caller reading a log line doesn't need a stack
// trace to know where to look.
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

// Unwrap allows errors.Is/errors.As to see through to the underlying
// cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through to the underlying
// cause.
func (e *Error) Cause() error { return e.Err }

// New builds an *Error with a formatted message as its cause.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap builds an *Error around an existing cause, preserving it for
// errors.Cause/errors.Is.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given Kind, unwrapping
// along the way.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
