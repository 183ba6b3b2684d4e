package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure reported by crossdb. The numeric
// values are part of the C binding contract (status codes) and must not
// be reordered.
type ErrorKind int

const (
	NoError ErrorKind = iota
	SyntaxError
	UnknownTable
	UnknownColumn
	TableExists
	ConstraintViolation
	TypeMismatch
	ColumnIndexOutOfRange
	UseAfterRelease
	TransactionAlreadyActive
	NoActiveTransaction
	AlreadyClosed
	StorageError
)

func (kind ErrorKind) String() string {
	switch kind {
	case NoError:
		return "NoError"
	case SyntaxError:
		return "SyntaxError"
	case UnknownTable:
		return "UnknownTable"
	case UnknownColumn:
		return "UnknownColumn"
	case TableExists:
		return "TableExists"
	case ConstraintViolation:
		return "ConstraintViolation"
	case TypeMismatch:
		return "TypeMismatch"
	case ColumnIndexOutOfRange:
		return "ColumnIndexOutOfRange"
	case UseAfterRelease:
		return "UseAfterRelease"
	case TransactionAlreadyActive:
		return "TransactionAlreadyActive"
	case NoActiveTransaction:
		return "NoActiveTransaction"
	case AlreadyClosed:
		return "AlreadyClosed"
	case StorageError:
		return "StorageError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
}

// Error is a tagged failure: a kind plus a human readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that the
// Err* sentinels match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSyntax                   = &Error{Kind: SyntaxError}
	ErrUnknownTable             = &Error{Kind: UnknownTable}
	ErrUnknownColumn            = &Error{Kind: UnknownColumn}
	ErrTableExists              = &Error{Kind: TableExists}
	ErrConstraintViolation      = &Error{Kind: ConstraintViolation}
	ErrTypeMismatch             = &Error{Kind: TypeMismatch}
	ErrColumnIndexOutOfRange    = &Error{Kind: ColumnIndexOutOfRange}
	ErrUseAfterRelease          = &Error{Kind: UseAfterRelease}
	ErrTransactionAlreadyActive = &Error{Kind: TransactionAlreadyActive}
	ErrNoActiveTransaction      = &Error{Kind: NoActiveTransaction}
	ErrAlreadyClosed            = &Error{Kind: AlreadyClosed}
	ErrStorage                  = &Error{Kind: StorageError}
)

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with a kind. It returns nil when err is nil.
func Wrap(kind ErrorKind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind carried by err. Untagged non-nil errors are
// reported as StorageError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return NoError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageError
}
