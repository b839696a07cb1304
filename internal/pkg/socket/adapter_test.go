package socket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(t *testing.T, ctx context.Context, addr string) *Server {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	adapter := NewRedisAdapter(client, "socket:broadcast")
	s := NewServer(Options{Adapter: adapter})
	go func() { _ = s.Run(ctx) }()

	select {
	case <-adapter.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter not subscribed")
	}
	return s
}

// 两个节点共享同一 Redis 频道，房间广播跨节点送达
func TestRedisAdapter_CrossNodeDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n1 := startNode(t, ctx, mr.Addr())
	n2 := startNode(t, ctx, mr.Addr())

	c1 := newConn(n1, "c1", TransportPolling, "", nil)
	n1.register(c1)
	c2 := newConn(n2, "c2", TransportPolling, "", nil)
	n2.register(c2)
	c3 := newConn(n2, "c3", TransportPolling, "", nil)
	n2.register(c3)

	require.NoError(t, n1.Join("c1", "conv-1"))
	require.NoError(t, n2.Join("c2", "conv-1"))

	require.NoError(t, n1.EmitTo([]string{"conv-1"}, "receiveMessage", map[string]string{"content": "hi"}, "c1"))

	select {
	case raw := <-c2.send:
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		assert.Equal(t, "receiveMessage", f.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("remote member did not receive broadcast")
	}

	// 发送方被排除，非成员收不到
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c1.send)
	assert.Empty(t, c3.send)

	// 定向投递可以跨节点找到连接
	require.NoError(t, n1.EmitToConn("c3", "wb-update-state", nil))
	select {
	case <-c3.send:
	case <-time.After(2 * time.Second):
		t.Fatal("direct emit not delivered across nodes")
	}
}
