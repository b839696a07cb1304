package socket

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollHandshake(t *testing.T, ts *httptest.Server) handshake {
	t.Helper()
	resp, err := http.Get(ts.URL + "/?transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hs handshake
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hs))
	require.NotEmpty(t, hs.SID)
	return hs
}

func pollPost(t *testing.T, ts *httptest.Server, sid string, frames []Frame) int {
	t.Helper()
	body, err := json.Marshal(frames)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/?transport=polling&sid="+sid, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func pollGet(t *testing.T, ts *httptest.Server, sid string) []Frame {
	t.Helper()
	resp, err := http.Get(ts.URL + "/?transport=polling&sid=" + sid)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var frames []Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frames))
	return frames
}

func TestPolling_HandshakePostGet(t *testing.T) {
	s, ts := newTestServer(t, Options{PingInterval: 5 * time.Second, PingTimeout: 10 * time.Second})
	var order []string
	s.On("echo", func(ctx context.Context, c *Conn, data json.RawMessage) error {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		order = append(order, v)
		return c.Emit("echoed", data)
	})

	hs := pollHandshake(t, ts)
	assert.EqualValues(t, 5000, hs.PingInterval)
	assert.EqualValues(t, 10000, hs.PingTimeout)
	assert.True(t, s.InRoom(hs.SID, hs.SID))

	status := pollPost(t, ts, hs.SID, []Frame{
		{Event: "echo", Data: json.RawMessage(`"a"`), Ack: 1},
		{Event: "echo", Data: json.RawMessage(`"b"`)},
	})
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, []string{"a", "b"}, order)

	frames := pollGet(t, ts, hs.SID)
	require.Len(t, frames, 3)
	assert.Equal(t, "echoed", frames[0].Event)
	assert.Equal(t, EventAck, frames[1].Event)
	assert.EqualValues(t, 1, frames[1].Ack)
	assert.Equal(t, "echoed", frames[2].Event)
	assert.JSONEq(t, `"b"`, string(frames[2].Data))
}

func TestPolling_GetTimesOutEmpty(t *testing.T) {
	_, ts := newTestServer(t, Options{PollTimeout: 50 * time.Millisecond})
	hs := pollHandshake(t, ts)

	frames := pollGet(t, ts, hs.SID)
	assert.Empty(t, frames)
}

func TestPolling_UnknownSID(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/?transport=polling&sid=missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusBadRequest, pollPost(t, ts, "missing", nil))
}

func TestPolling_ReceivesRoomBroadcast(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	hs := pollHandshake(t, ts)
	require.NoError(t, s.Join(hs.SID, "room-1"))

	require.NoError(t, s.EmitTo([]string{"room-1"}, "news", map[string]int{"n": 1}, ""))

	frames := pollGet(t, ts, hs.SID)
	require.Len(t, frames, 1)
	assert.Equal(t, "news", frames[0].Event)
}

func TestPolling_ReaperClosesIdleSession(t *testing.T) {
	s, ts := newTestServer(t, Options{PingTimeout: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	hs := pollHandshake(t, ts)
	require.Eventually(t, func() bool {
		_, ok := s.Conn(hs.SID)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}
