package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_InjectsTraceAndConn(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	ctx := WithConn(WithTrace(context.Background(), "trace-1"), "conn-1")
	l.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "trace-1", rec["trace_id"])
	assert.Equal(t, "conn-1", rec["conn_id"])
}

func TestContextHandler_WithAttrsKeepsWrapper(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)}).With("component", "socket")

	l.InfoContext(WithTrace(context.Background(), "trace-2"), "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "trace-2", rec["trace_id"])
	assert.Equal(t, "socket", rec["component"])
}

func TestRemoteFilterHandler_DropsUntraceable(t *testing.T) {
	var local, remote bytes.Buffer
	h := &TeeHandler{handlers: []log.Handler{
		log.NewJSONHandler(&local, nil),
		&RemoteFilterHandler{next: log.NewJSONHandler(&remote, nil)},
	}}
	l := log.New(&ContextHandler{h})

	l.Info("boot")
	assert.NotEmpty(t, local.String())
	assert.Empty(t, remote.String())

	local.Reset()
	l.InfoContext(WithTrace(context.Background(), "trace-3"), "event")
	assert.NotEmpty(t, local.String())
	assert.Contains(t, remote.String(), "trace-3")
}
