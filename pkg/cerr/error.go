package cerr

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/chainagent/chainagent/pkg/clog"
)

// Error carries a transport-mappable code, a user-facing message, the
// underlying error for logs, and an optional structured detail payload
// that is returned to the caller alongside the message.
type Error struct {
	Code    Code
	Msg     string
	Err     error
	Stack   string
	Details any
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if clog.HTTPStatusToLevel(code.HTTPCode()) == clog.LevelError {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

// NewErrorWithDetails attaches a JSON-serializable detail payload, e.g.
// the requested/available amounts of a rejected spend.
func NewErrorWithDetails(code Code, msg string, underlying error, details any) *Error {
	err := NewError(code, msg, underlying)
	err.Details = details
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
