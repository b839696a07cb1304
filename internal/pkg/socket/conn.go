package socket

import (
	"context"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	TransportWebsocket = "websocket"
	TransportPolling   = "polling"

	writeWait = 10 * time.Second
)

// Conn 一个客户端连接，传输方式对上层透明
type Conn struct {
	id        string
	server    *Server
	query     url.Values
	remote    string
	transport string

	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu     sync.RWMutex
	values map[string]any

	// rooms 由 server.mu 保护
	rooms map[string]struct{}
}

func newConn(s *Server, id, transport, remote string, query url.Values) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:        id,
		server:    s,
		query:     query,
		remote:    remote,
		transport: transport,
		send:      make(chan []byte, s.opts.SendQueue),
		ctx:       ctx,
		cancel:    cancel,
		values:    make(map[string]any),
		rooms:     make(map[string]struct{}),
	}
}

func (c *Conn) ID() string               { return c.id }
func (c *Conn) Query() url.Values        { return c.query }
func (c *Conn) RemoteAddr() string       { return c.remote }
func (c *Conn) Transport() string        { return c.transport }
func (c *Conn) Context() context.Context { return c.ctx }
func (c *Conn) Done() <-chan struct{}    { return c.ctx.Done() }
func (c *Conn) Closed() bool             { return c.ctx.Err() != nil }

// Set 保存连接级别的上下文数据（如握手身份）
func (c *Conn) Set(key string, v any) {
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
}

func (c *Conn) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Rooms 当前加入的房间（含自身 ID 房间）
func (c *Conn) Rooms() []string {
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Emit 直接向本连接发送事件，不经过广播适配器
func (c *Conn) Emit(event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	c.enqueue(frame)
	return nil
}

// Close 幂等关闭，断开回调只执行一次
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.server.disconnect(c)
	})
}

// enqueue 非阻塞写入发送队列，队列满视为慢消费者并断开
func (c *Conn) enqueue(frame []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		log.Warn("socket: slow consumer, closing connection", "connID", c.id, "transport", c.transport)
		go c.Close()
		return false
	}
}

// drain 取出最多 max 条已排队的帧，不阻塞
func (c *Conn) drain(first []byte, max int) [][]byte {
	frames := [][]byte{first}
	for len(frames) < max {
		select {
		case f := <-c.send:
			frames = append(frames, f)
		default:
			return frames
		}
	}
	return frames
}

// writePump 从发送队列取帧写入 socket，并定时发送 ping
func (c *Conn) writePump(ws *websocket.Conn) {
	ticker := time.NewTicker(c.server.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("socket: write failed", "connID", c.id, "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.ctx.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump 顺序读取并分发入站帧，保证单连接内的事件顺序
func (c *Conn) readPump(ws *websocket.Conn) {
	defer c.Close()

	ws.SetReadLimit(c.server.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(c.server.opts.PingTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.server.opts.PingTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("socket: connection lost", "connID", c.id, "err", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(c.server.opts.PingTimeout))

		var f Frame
		if err = json.Unmarshal(data, &f); err != nil || f.Event == "" {
			log.Warn("socket: malformed frame dropped", "connID", c.id, "err", err)
			continue
		}
		c.server.dispatch(c, &f)
	}
}
