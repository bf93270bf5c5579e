package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufLogger(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	ctx := context.Background()
	l, buf := newBufLogger(slog.LevelDebug)

	l.Debug(ctx, "dbg", "k", "v")
	l.Info(ctx, "inf")
	l.Warn(ctx, "wrn")
	l.Error(ctx, "err")

	out := buf.String()
	assert.Contains(t, out, `"msg":"dbg"`)
	assert.Contains(t, out, `"msg":"inf"`)
	assert.Contains(t, out, `"msg":"wrn"`)
	assert.Contains(t, out, `"msg":"err"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestSlogLogger_With(t *testing.T) {
	ctx := context.Background()
	l, buf := newBufLogger(slog.LevelInfo)

	child := l.With("module", "gateway")
	require.NotNil(t, child)
	child.Info(ctx, "hello")

	assert.Contains(t, buf.String(), `"module":"gateway"`)
}
