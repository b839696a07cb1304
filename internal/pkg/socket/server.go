package socket

import (
	"Solace/internal/pkg/logger"
	"context"
	"fmt"
	log "log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Options 服务端参数，零值由 NewServer 补齐
type Options struct {
	PingInterval   time.Duration
	PingTimeout    time.Duration
	PollTimeout    time.Duration
	SendQueue      int
	MaxMessageSize int64
	AllowedOrigins []string
	Adapter        Adapter
	AckMapper      AckMapper
}

// Stats 本节点连接概况
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Polling     int `json:"polling"`
}

// Server 单入口的事件连接服务：连接管理、房间、广播与事件分发
type Server struct {
	opts     Options
	upgrader websocket.Upgrader

	hmu          sync.RWMutex
	handlers     map[string]HandlerFunc
	onConnect    func(ctx context.Context, c *Conn)
	onDisconnect func(ctx context.Context, c *Conn)

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[*Conn]struct{}

	pmu   sync.Mutex
	polls map[string]*pollSession
}

func NewServer(opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 60 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 20 * time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 8 << 20
	}

	s := &Server{
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]map[*Conn]struct{}),
		polls:    make(map[string]*pollSession),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// On 注册事件处理函数，同名覆盖
func (s *Server) On(event string, h HandlerFunc) {
	s.hmu.Lock()
	s.handlers[event] = h
	s.hmu.Unlock()
}

func (s *Server) OnConnect(fn func(ctx context.Context, c *Conn)) {
	s.hmu.Lock()
	s.onConnect = fn
	s.hmu.Unlock()
}

func (s *Server) OnDisconnect(fn func(ctx context.Context, c *Conn)) {
	s.hmu.Lock()
	s.onDisconnect = fn
	s.hmu.Unlock()
}

// Run 启动广播适配器订阅与长轮询会话回收，ctx 结束后关闭全部连接
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	if s.opts.Adapter != nil {
		g.Go(func() error {
			return s.opts.Adapter.Run(gCtx, s.deliverLocal)
		})
	}
	g.Go(func() error {
		s.reapPolls(gCtx)
		return nil
	})

	err := g.Wait()
	s.Close()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close 关闭所有连接
func (s *Server) Close() {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// ServeHTTP 按 transport 参数选择长轮询或 WebSocket
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") == TransportPolling {
		s.servePolling(w, r)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	s.serveWebsocket(w, r)
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnContext(r.Context(), "socket: upgrade failed", "err", err)
		return
	}

	c := newConn(s, uuid.NewString(), TransportWebsocket, r.RemoteAddr, r.URL.Query())
	s.register(c)
	go c.writePump(ws)
	s.connected(c)

	// 阻塞直到连接断开
	c.readPump(ws)
}

func (s *Server) register(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.joinLocked(c, c.id)
	s.mu.Unlock()
}

func (s *Server) connected(c *Conn) {
	s.hmu.RLock()
	fn := s.onConnect
	s.hmu.RUnlock()

	log.Info("socket: connected", "connID", c.id, "transport", c.transport, "remote", c.remote)
	if fn != nil {
		s.safeHook(c, "connect", fn)
	}
}

// disconnect 先执行断开回调（此时连接仍在房间内），再清理房间
func (s *Server) disconnect(c *Conn) {
	s.hmu.RLock()
	fn := s.onDisconnect
	s.hmu.RUnlock()

	if fn != nil {
		s.safeHook(c, "disconnect", fn)
	}

	s.mu.Lock()
	for room := range c.rooms {
		s.leaveLocked(c, room)
	}
	delete(s.conns, c.id)
	s.mu.Unlock()

	s.pmu.Lock()
	delete(s.polls, c.id)
	s.pmu.Unlock()

	log.Info("socket: disconnected", "connID", c.id, "transport", c.transport)
}

func (s *Server) safeHook(c *Conn, name string, fn func(ctx context.Context, c *Conn)) {
	ctx := logger.WithConn(logger.WithTrace(context.WithoutCancel(c.ctx), uuid.NewString()), c.id)
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "socket: hook panic", "hook", name, "panic", r)
		}
	}()
	fn(ctx, c)
}

// dispatch 同步执行事件处理；连接断开不会取消进行中的处理
func (s *Server) dispatch(c *Conn, f *Frame) {
	ctx := logger.WithConn(logger.WithTrace(context.WithoutCancel(c.ctx), uuid.NewString()), c.id)

	s.hmu.RLock()
	h, ok := s.handlers[f.Event]
	s.hmu.RUnlock()

	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownEvent, f.Event)
	} else {
		err = s.call(ctx, h, c, f.Data)
	}

	if err != nil {
		log.WarnContext(ctx, "socket: event dropped", "event", f.Event, "err", err)
	}

	if f.Ack == 0 {
		return
	}
	res := &AckResult{OK: err == nil}
	if err != nil {
		res.Error, res.Message = "internal", err.Error()
		if s.opts.AckMapper != nil {
			res.Error, res.Message = s.opts.AckMapper(err)
		}
	}
	frame, encErr := encodeAck(f.Ack, res)
	if encErr != nil {
		log.ErrorContext(ctx, "socket: encode ack failed", "err", encErr)
		return
	}
	c.enqueue(frame)
}

func (s *Server) call(ctx context.Context, h HandlerFunc, c *Conn, data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "socket: handler panic", "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, c, data)
}

// Conn 按 ID 查找本节点连接
func (s *Server) Conn(id string) (*Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// Join 将连接加入房间，幂等
func (s *Server) Join(connID, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	s.joinLocked(c, room)
	return nil
}

// Leave 将连接移出房间，幂等
func (s *Server) Leave(connID, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	s.leaveLocked(c, room)
	return nil
}

func (s *Server) joinLocked(c *Conn, room string) {
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		s.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (s *Server) leaveLocked(c *Conn, room string) {
	if members, ok := s.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// RoomSize 本节点房间成员数
func (s *Server) RoomSize(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// InRoom 判断连接是否在房间内
func (s *Server) InRoom(connID, room string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[connID]
	if !ok {
		return false
	}
	_, in := c.rooms[room]
	return in
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	st := Stats{Connections: len(s.conns), Rooms: len(s.rooms)}
	s.mu.RUnlock()
	s.pmu.Lock()
	st.Polling = len(s.polls)
	s.pmu.Unlock()
	return st
}

// EmitTo 向若干房间的并集广播，exceptConnID 非空时排除该连接
func (s *Server) EmitTo(rooms []string, event string, payload any, exceptConnID string) error {
	if len(rooms) == 0 {
		return nil
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	return s.publish(&Packet{Rooms: rooms, Except: exceptConnID, Frame: frame})
}

// EmitAll 全局广播
func (s *Server) EmitAll(event string, payload any, exceptConnID string) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	return s.publish(&Packet{All: true, Except: exceptConnID, Frame: frame})
}

// EmitToConn 定向投递到单个连接（经由其自身 ID 房间，可跨节点）
func (s *Server) EmitToConn(connID, event string, payload any) error {
	return s.EmitTo([]string{connID}, event, payload, "")
}

func (s *Server) publish(p *Packet) error {
	if s.opts.Adapter == nil {
		s.deliverLocal(p)
		return nil
	}
	return s.opts.Adapter.Broadcast(context.Background(), p)
}

// deliverLocal 投递到本节点的目标连接，每个连接至多一次
func (s *Server) deliverLocal(p *Packet) {
	s.mu.RLock()
	var targets []*Conn
	if p.All {
		targets = make([]*Conn, 0, len(s.conns))
		for id, c := range s.conns {
			if id != p.Except {
				targets = append(targets, c)
			}
		}
	} else {
		seen := make(map[*Conn]struct{})
		for _, room := range p.Rooms {
			for c := range s.rooms[room] {
				if c.id == p.Except {
					continue
				}
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				targets = append(targets, c)
			}
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(p.Frame)
	}
}
