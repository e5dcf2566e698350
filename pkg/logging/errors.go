// pkg/logging/errors.go

package logging

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorKind string

const (
	ErrorKindConfig  ErrorKind = "CONFIG"
	ErrorKindRules   ErrorKind = "RULES"
	ErrorKindCollect ErrorKind = "COLLECT"
	ErrorKindRuntime ErrorKind = "RUNTIME"
)

// ToolError carries the failing tool and a kind so callers can log
// structured context without string matching.
type ToolError struct {
	Tool    string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewError wraps err with tool and kind context.
func NewError(tool string, kind ErrorKind, message string, err error) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Message: message, Err: err}
}

// LogError emits err on logger with structured fields when it is a ToolError.
func LogError(logger zerolog.Logger, err error) {
	var te *ToolError
	if !errors.As(err, &te) {
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Error().
		Err(te.Err).
		Str("tool", te.Tool).
		Str("kind", string(te.Kind)).
		Msg(te.Message)
}
