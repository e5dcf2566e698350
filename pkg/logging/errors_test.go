// pkg/logging/errors_test.go

package logging

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolError(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewError("lkce", ErrorKindConfig, "unable to load configuration", cause)

	assert.Equal(t, "lkce: unable to load configuration: permission denied", err.Error())
	assert.True(t, errors.Is(err, cause))

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "lkce", te.Tool)
	assert.Equal(t, ErrorKindConfig, te.Kind)

	// Without a cause the message stands alone.
	bare := NewError("oscheck", ErrorKindRuntime, "unable to write report", nil)
	assert.Equal(t, "oscheck: unable to write report", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestLogErrorStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogError(logger, NewError("oscheck", ErrorKindRules, "unable to load rules", errors.New("no such file")))

	out := buf.String()
	assert.Contains(t, out, `"tool":"oscheck"`)
	assert.Contains(t, out, `"kind":"RULES"`)
	assert.Contains(t, out, "unable to load rules")
	assert.Contains(t, out, "no such file")
}

func TestLogErrorWrappedToolError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	inner := NewError("memtracker", ErrorKindCollect, "unable to read meminfo", errors.New("read failed"))
	LogError(logger, fmt.Errorf("start: %w", inner))

	out := buf.String()
	assert.Contains(t, out, `"tool":"memtracker"`)
	assert.Contains(t, out, `"kind":"COLLECT"`)
}

func TestLogErrorPlainError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogError(logger, errors.New("something broke"))

	out := buf.String()
	assert.Contains(t, out, "something broke")
	assert.NotContains(t, out, `"tool"`)
}
