package service

import (
	"Solace/internal/api/dto"
	"Solace/internal/pkg/consts"
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/goccy/go-json"
)

// CallSession 一个通话房间及其成员连接
type CallSession struct {
	RoomID string
	peers  map[string]struct{}
}

func (c *CallSession) has(connID string) bool {
	_, ok := c.peers[connID]
	return ok
}

type SignalingService interface {
	Join(ctx context.Context, connID, roomID string) error
	Ready(ctx context.Context, connID, roomID string) error
	// Relay 原样转发 offer / answer / ice-candidate 给房间内其他成员
	Relay(ctx context.Context, connID, event string, raw json.RawMessage) error
	LeaveAll(ctx context.Context, connID string)
	Sessions() int
}

type signalingServiceImpl struct {
	bc       Broadcaster
	maxPeers int

	mu       sync.Mutex
	sessions map[string]*CallSession
}

func NewSignalingService(bc Broadcaster, maxPeers int) SignalingService {
	if maxPeers <= 0 {
		maxPeers = 2
	}
	return &signalingServiceImpl{
		bc:       bc,
		maxPeers: maxPeers,
		sessions: make(map[string]*CallSession),
	}
}

// Join 重复加入幂等；人数已满时通知调用方 call-full 且不入房
func (s *signalingServiceImpl) Join(ctx context.Context, connID, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId required", ErrParamInvalid)
	}

	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	if !ok {
		sess = &CallSession{RoomID: roomID, peers: make(map[string]struct{})}
		s.sessions[roomID] = sess
	}
	if !sess.has(connID) && len(sess.peers) >= s.maxPeers {
		s.mu.Unlock()
		log.InfoContext(ctx, "call full, join rejected", "roomId", roomID, "maxPeers", s.maxPeers)
		if err := s.bc.EmitToConn(connID, consts.EventCallFull, &dto.CallFullDTO{RoomID: roomID, MaxPeers: s.maxPeers}); err != nil {
			log.WarnContext(ctx, "emit call-full failed", "err", err)
		}
		return ErrCallFull
	}
	sess.peers[connID] = struct{}{}
	s.mu.Unlock()

	return s.bc.Join(connID, roomID)
}

func (s *signalingServiceImpl) Ready(ctx context.Context, connID, roomID string) error {
	if err := s.checkMember(connID, roomID); err != nil {
		return err
	}
	return s.bc.EmitTo([]string{roomID}, consts.EventUserConnected, &dto.PeerDTO{RoomID: roomID, PeerID: connID}, connID)
}

func (s *signalingServiceImpl) Relay(ctx context.Context, connID, event string, raw json.RawMessage) error {
	var ref dto.RoomRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if err := s.checkMember(connID, ref.RoomID); err != nil {
		return err
	}
	return s.bc.EmitTo([]string{ref.RoomID}, event, raw, connID)
}

func (s *signalingServiceImpl) checkMember(connID, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId required", ErrParamInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[roomID]
	if !ok || !sess.has(connID) {
		return ErrNotInCall
	}
	return nil
}

// LeaveAll 连接断开时退出所有通话，通知剩余成员 user-left
func (s *signalingServiceImpl) LeaveAll(ctx context.Context, connID string) {
	var left []string
	s.mu.Lock()
	for roomID, sess := range s.sessions {
		if !sess.has(connID) {
			continue
		}
		delete(sess.peers, connID)
		if len(sess.peers) == 0 {
			delete(s.sessions, roomID)
		}
		left = append(left, roomID)
	}
	s.mu.Unlock()

	for _, roomID := range left {
		_ = s.bc.Leave(connID, roomID)
		if err := s.bc.EmitTo([]string{roomID}, consts.EventUserLeft, &dto.PeerDTO{RoomID: roomID, PeerID: connID}, connID); err != nil {
			log.WarnContext(ctx, "emit user-left failed", "roomId", roomID, "err", err)
		}
	}
}

func (s *signalingServiceImpl) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
