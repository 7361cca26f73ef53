// Package caerr defines the error kinds shared by the EasyCA packages.
package caerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrNotFound indicates a missing CA, CSR, key or certificate.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an operation would overwrite an existing artifact.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotACA indicates a certificate lacks the Basic Constraints CA flag.
	ErrNotACA = errors.New("certificate is not a CA")

	// ErrCertificateParse indicates malformed certificate input.
	ErrCertificateParse = errors.New("certificate parse error")

	// ErrSigning indicates the toolkit failed to sign a request.
	ErrSigning = errors.New("signing failed")

	// ErrToolkit indicates any other toolkit failure, including timeouts.
	ErrToolkit = errors.New("toolkit failure")

	// ErrStorage indicates a filesystem operation failed.
	ErrStorage = errors.New("storage error")

	// ErrPartialTransaction indicates a multi-step transaction left inconsistent state.
	ErrPartialTransaction = errors.New("partial transaction")

	// ErrUserInput indicates an invalid selection or missing argument.
	ErrUserInput = errors.New("invalid input")
)

// Error carries an operation, the artifact it acted on and an error kind.
// It matches both its Kind and its underlying cause with errors.Is.
type Error struct {
	Op   string // create-ca, create-csr, sign-csr, promote, show-cert, store, ...
	Name string // common name or path (if applicable)
	Kind error  // one of the sentinel kinds above
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " [%s]", e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an *Error of the given kind.
func New(op, name string, kind, err error) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: err}
}

// Newf returns an *Error of the given kind with a formatted cause.
func Newf(op, name string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// PartialTransactionError reports a promotion that stopped between steps
// and could not be rolled back.
type PartialTransactionError struct {
	Name      string
	Committed []string
	Pending   []string
	Err       error
}

// Error implements the error interface.
func (e *PartialTransactionError) Error() string {
	return fmt.Sprintf("promote [%s]: %v: committed=[%s] pending=[%s]: %v",
		e.Name, ErrPartialTransaction,
		strings.Join(e.Committed, ", "), strings.Join(e.Pending, ", "), e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialTransactionError) Unwrap() error { return e.Err }

// Is reports ErrPartialTransaction as a match.
func (e *PartialTransactionError) Is(target error) bool {
	return target == ErrPartialTransaction
}

// IsUserInput reports whether err is a recoverable user input error.
func IsUserInput(err error) bool {
	return errors.Is(err, ErrUserInput)
}
