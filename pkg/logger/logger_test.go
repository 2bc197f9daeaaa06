package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info").With(String("job", "settlement"))

	l.Info("account done",
		Int("rows", 3),
		Float64("balance", 1000.5),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "settlement", got["job"])
	assert.Equal(t, "account done", got["message"])
	assert.EqualValues(t, 3, got["rows"])
	assert.EqualValues(t, 1000.5, got["balance"])
	assert.EqualValues(t, 1500, got["elapsed"])
	assert.Equal(t, "boom", got["error"])
}

func TestWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
