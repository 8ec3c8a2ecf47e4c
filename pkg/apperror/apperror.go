package apperror

import "errors"

// Kind is the closed set of error classes callers switch on.
type Kind string

const (
	KindInternal     Kind = "internal"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindInsufficient Kind = "insufficient"
)

// Error is a tagged domain error. Code is a stable snake_case identifier.
type Error struct {
	Kind Kind
	Code string
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func (e *Error) Error() string {
	return e.Code
}

// Kinded is implemented by errors that carry their own kind.
type Kinded interface {
	ErrorKind() Kind
}

func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// KindOf returns the kind of the first tagged error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsInsufficient(err error) bool { return KindOf(err) == KindInsufficient }
