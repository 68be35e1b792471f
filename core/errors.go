package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a named value is missing from a materialized
// result.
var ErrNotFound = errors.New("not found")

// CompileError reports an expression that cannot be turned into a command.
// It is always raised before anything is sent to the server.
type CompileError struct {
	Construct string // The offending construct, e.g. "MethodCall" or "Compare".
	Member    string // The field path or method name involved, if any.
	Reason    string
	cause     error
}

// NewCompileError creates a CompileError for the given construct.
func NewCompileError(construct, member, reason string) *CompileError {
	return &CompileError{Construct: construct, Member: member, Reason: reason}
}

// WrapCompileError creates a CompileError carrying an underlying cause.
func WrapCompileError(construct, member, reason string, cause error) *CompileError {
	return &CompileError{Construct: construct, Member: member, Reason: reason, cause: cause}
}

func (e *CompileError) Error() string {
	msg := "compile error in " + e.Construct
	if e.Member != "" {
		msg += fmt.Sprintf(" (%s)", e.Member)
	}
	msg += ": " + e.Reason
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.cause }

// ServerError is an error reply reported by the server for a command.
type ServerError struct {
	Command string
	Message string
	cause   error
}

// NewServerError creates a ServerError for a failed command.
func NewServerError(command string, cause error) *ServerError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &ServerError{Command: command, Message: msg, cause: cause}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error on %s: %s", e.Command, e.Message)
}

func (e *ServerError) Unwrap() error { return e.cause }

// ProtocolError indicates a reply whose shape does not match the framing a
// command is expected to produce.
type ProtocolError struct {
	Context  string
	Expected string
	Got      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s: expected %s, got %s", e.Context, e.Expected, e.Got)
}

// IsCompileError reports whether err is, or wraps, a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
