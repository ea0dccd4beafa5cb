package errors

import stderrors "errors"

// NewStd returns a plain error, like errors.New in the standard library.
func NewStd(text string) error { return stderrors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap returns the error wrapped by err, or nil.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join returns an error wrapping errs, nil when all are nil.
func Join(errs ...error) error { return stderrors.Join(errs...) }
