package socket

import (
	"context"
	log "log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxPollBatch 单次长轮询响应最多携带的帧数
const maxPollBatch = 64

type pollSession struct {
	conn     *Conn
	postMu   sync.Mutex
	getMu    sync.Mutex
	lastSeen atomic.Int64
}

func (p *pollSession) touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

type handshake struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// servePolling 长轮询传输：无 sid 的 GET 为握手，带 sid 的 GET 拉取、POST 推送
func (s *Server) servePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "missing sid", http.StatusBadRequest)
			return
		}
		s.pollHandshake(w, r)
		return
	}

	s.pmu.Lock()
	sess, ok := s.polls[sid]
	s.pmu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusBadRequest)
		return
	}
	sess.touch()

	switch r.Method {
	case http.MethodGet:
		s.pollGet(w, r, sess)
	case http.MethodPost:
		s.pollPost(w, r, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) pollHandshake(w http.ResponseWriter, r *http.Request) {
	c := newConn(s, uuid.NewString(), TransportPolling, r.RemoteAddr, r.URL.Query())
	sess := &pollSession{conn: c}
	sess.touch()

	s.register(c)
	s.pmu.Lock()
	s.polls[c.id] = sess
	s.pmu.Unlock()
	s.connected(c)

	writeJSON(w, http.StatusOK, &handshake{
		SID:          c.id,
		PingInterval: s.opts.PingInterval.Milliseconds(),
		PingTimeout:  s.opts.PingTimeout.Milliseconds(),
	})
}

func (s *Server) pollGet(w http.ResponseWriter, r *http.Request, sess *pollSession) {
	if !sess.getMu.TryLock() {
		http.Error(w, "concurrent poll", http.StatusBadRequest)
		return
	}
	defer sess.getMu.Unlock()
	defer sess.touch()

	c := sess.conn
	timer := time.NewTimer(s.opts.PollTimeout)
	defer timer.Stop()

	var frames [][]byte
	select {
	case first := <-c.send:
		frames = c.drain(first, maxPollBatch)
	case <-timer.C:
	case <-r.Context().Done():
		return
	case <-c.Done():
		select {
		case first := <-c.send:
			frames = c.drain(first, maxPollBatch)
		default:
			http.Error(w, "connection closed", http.StatusGone)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(joinFrames(frames))
}

func (s *Server) pollPost(w http.ResponseWriter, r *http.Request, sess *pollSession) {
	// 同一会话的 POST 串行分发，保证事件顺序
	sess.postMu.Lock()
	defer sess.postMu.Unlock()

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxMessageSize)
	var frames []Frame
	if err := json.NewDecoder(r.Body).Decode(&frames); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	c := sess.conn
	for i := range frames {
		if frames[i].Event == "" {
			log.Warn("socket: malformed frame dropped", "connID", c.id)
			continue
		}
		if c.Closed() {
			break
		}
		s.dispatch(c, &frames[i])
	}
	w.WriteHeader(http.StatusNoContent)
}

// reapPolls 关闭超过 PingTimeout 未活动的长轮询会话
func (s *Server) reapPolls(ctx context.Context) {
	interval := s.opts.PingTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(-s.opts.PingTimeout).UnixNano()
			var expired []*pollSession
			s.pmu.Lock()
			for _, sess := range s.polls {
				if sess.lastSeen.Load() < deadline {
					expired = append(expired, sess)
				}
			}
			s.pmu.Unlock()

			for _, sess := range expired {
				log.Info("socket: polling session expired", "connID", sess.conn.id)
				sess.conn.Close()
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
