package impl

import (
	"errors"
	"fmt"

	"go.dedis.ch/clarity/contract/types"
	"golang.org/x/xerrors"
)

// Class groups VM errors by who is at fault.
type Class int

const (
	// Interpreter errors are bugs or storage failures inside the VM.
	Interpreter Class = iota
	// Unchecked errors are contract mistakes a static check could catch.
	Unchecked
	// Runtime errors depend on the values a contract computes.
	Runtime
	// Check errors are reported by the static checker.
	Check
)

func (c Class) String() string {
	switch c {
	case Interpreter:
		return "interpreter error"
	case Unchecked:
		return "unchecked error"
	case Runtime:
		return "runtime error"
	case Check:
		return "check error"
	}
	return "error"
}

// Error kinds. Compare with errors.Is.
var (
	ErrInterpreter                 = errors.New("interpreter failure")
	ErrDatabase                    = errors.New("database failure")
	ErrFailedToConstructAssetTable = errors.New("failed to construct asset table")

	ErrUndefinedVariable          = errors.New("undefined variable")
	ErrUndefinedFunction          = errors.New("undefined function")
	ErrUndefinedContract          = errors.New("undefined contract")
	ErrUndefinedMap               = errors.New("undefined map")
	ErrUndefinedToken             = errors.New("undefined token")
	ErrNonPublicFunction          = errors.New("non-public function")
	ErrTypeError                  = errors.New("type error")
	ErrIncorrectArgumentCount     = errors.New("incorrect argument count")
	ErrInvalidArguments           = errors.New("invalid arguments")
	ErrContractMustReturnResponse = errors.New("contract must return response")
	ErrRecursionDetected          = errors.New("recursion detected")
	ErrWriteInReadOnly            = errors.New("write attempted in read-only context")
	ErrNameAlreadyUsed            = errors.New("name already used")
	ErrReservedName               = errors.New("reserved name")
	ErrBadDefinition              = errors.New("bad definition")
	ErrNoSender                   = errors.New("no sender in context")
	ErrContractAlreadyExists      = errors.New("contract already exists")
	ErrBadContractName            = errors.New("bad contract name")

	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrBadPower            = errors.New("bad power argument")
	ErrParse               = errors.New("parse error")
	ErrMaxContextDepth     = errors.New("max context depth reached")
	ErrMaxStackDepth       = errors.New("max call stack depth reached")
	ErrBadBlockHeight      = errors.New("bad block height")
)

// Error is any failure raised while checking or running a contract.
type Error struct {
	Class  Class
	Kind   error
	Detail string
	// Stack is the call stack when the error was raised, innermost last.
	Stack []FunctionIdentifier

	frame xerrors.Frame
}

func newError(class Class, kind error, format string, args ...any) *Error {
	return &Error{
		Class:  class,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
		frame:  xerrors.Caller(2),
	}
}

func interpreterErr(kind error, format string, args ...any) *Error {
	return newError(Interpreter, kind, format, args...)
}

func uncheckedErr(kind error, format string, args ...any) *Error {
	return newError(Unchecked, kind, format, args...)
}

func runtimeErr(kind error, format string, args ...any) *Error {
	return newError(Runtime, kind, format, args...)
}

func checkErr(kind error, format string, args ...any) *Error {
	return newError(Check, kind, format, args...)
}

// dbErr wraps a storage failure.
func dbErr(err error, format string, args ...any) *Error {
	e := newError(Interpreter, ErrDatabase, format, args...)
	e.Detail = fmt.Sprintf("%s: %v", e.Detail, err)
	return e
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Class, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Class, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// FormatError implements xerrors.Formatter, adding the raise site with %+v.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Print(e.Error())
	e.frame.Format(p)
	return nil
}

func (e *Error) Format(s fmt.State, v rune) { xerrors.FormatError(e, s, v) }

// shortReturn unwinds evaluation to the enclosing function, which returns
// Value. expects! and expects-err! raise it.
type shortReturn struct {
	Value types.Value
}

func (s *shortReturn) Error() string {
	return fmt.Sprintf("short return: %s", s.Value)
}

// IsClass reports whether err is a VM error of class c.
func IsClass(err error, c Class) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == c
}

func asShortReturn(err error, target **shortReturn) bool {
	return err != nil && errors.As(err, target)
}
