package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/theirongolddev/esusu/internal/model"
)

// Code classifies engine failures so callers can branch on kind.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeStorage    Code = "storage"
	CodeInternal   Code = "internal"
)

// Error is the failure type returned by every engine command.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func invalid(op, format string, args ...any) error {
	return &Error{Code: CodeValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) error {
	return &Error{Code: CodeConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// wrap converts a collaborator error into an engine error, keeping codes
// that are already set.
func wrap(op, msg string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	code := CodeStorage
	switch {
	case errors.Is(err, model.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, model.ErrDuplicate):
		code = CodeConflict
	case errors.Is(err, model.ErrBalanceInvariant):
		code = CodeConflict
	}
	return &Error{Code: code, Op: op, Msg: msg, Err: err}
}

// recoverTo turns a panic inside a command into an internal error.
func recoverTo(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = &Error{Code: CodeInternal, Op: op, Msg: fmt.Sprintf("unexpected failure: %v", r)}
	}
}

var validate = validator.New()

func validateInput(op string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Code: CodeValidation, Op: op, Msg: "invalid input", Err: err}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return &Error{Code: CodeValidation, Op: op, Msg: strings.Join(msgs, "; ")}
}
