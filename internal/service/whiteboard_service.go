package service

import (
	"Solace/internal/api/config"
	"Solace/internal/api/dto"
	"Solace/internal/pkg/canvas"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/util"
	"context"
	"fmt"
	"image/color"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// BoardState 房间白板状态
type BoardState int

const (
	BoardIdle BoardState = iota
	BoardLive
)

func (b BoardState) String() string {
	if b == BoardLive {
		return "live"
	}
	return "idle"
}

type whiteboardRoom struct {
	state      BoardState
	board      *canvas.Board // 未开启影子画板时为 nil
	lastActive time.Time
}

type WhiteboardService interface {
	Draw(ctx context.Context, connID string, raw json.RawMessage) error
	Clear(ctx context.Context, connID, roomID string) error
	RequestState(ctx context.Context, connID, roomID string) error
	SendState(ctx context.Context, connID string, req *dto.WbSendStateReq) error
	State(roomID string) BoardState
	// SweepIdle 回收无人且超过 ttl 未活动的房间，返回回收数量
	SweepIdle(now time.Time, ttl time.Duration) int
	Rooms() int
}

type whiteboardServiceImpl struct {
	bc  Broadcaster
	cfg config.WhiteboardConfig

	mu     sync.Mutex
	rooms  map[string]*whiteboardRoom
	boards int
}

func NewWhiteboardService(bc Broadcaster, cfg config.WhiteboardConfig) WhiteboardService {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.MaxBoards <= 0 {
		cfg.MaxBoards = 64
	}
	return &whiteboardServiceImpl{
		bc:    bc,
		cfg:   cfg,
		rooms: make(map[string]*whiteboardRoom),
	}
}

// room 取得或创建房间，调用方持有 s.mu。
// 只有房间成员发出的事件才会登记房间，非成员返回 nil；影子画板达到上限后新房间不再分配画板
func (s *whiteboardServiceImpl) room(connID, roomID string) *whiteboardRoom {
	if !s.bc.InRoom(connID, roomID) {
		return nil
	}
	r, ok := s.rooms[roomID]
	if !ok {
		r = &whiteboardRoom{}
		if s.cfg.ShadowCanvas {
			if s.boards < s.cfg.MaxBoards {
				r.board = canvas.NewBoard(s.cfg.Width, s.cfg.Height)
				s.boards++
			} else {
				log.Warn("whiteboard shadow board limit reached", "roomId", roomID, "max", s.cfg.MaxBoards)
			}
		}
		s.rooms[roomID] = r
	}
	r.lastActive = time.Now()
	return r
}

func (s *whiteboardServiceImpl) Draw(ctx context.Context, connID string, raw json.RawMessage) error {
	var req dto.WbDrawReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if err := util.ValidateDTO(&req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}

	var board *canvas.Board
	s.mu.Lock()
	if r := s.room(connID, req.RoomID); r != nil {
		r.state = BoardLive
		board = r.board
	}
	s.mu.Unlock()

	if board != nil {
		c, err := canvas.ParseColor(req.Color)
		if err != nil {
			c = color.NRGBA{A: 255}
		}
		board.DrawLine(req.X0, req.Y0, req.X1, req.Y1, c, req.Width)
	}

	return s.bc.EmitTo([]string{req.RoomID}, consts.EventWbDraw, raw, connID)
}

func (s *whiteboardServiceImpl) Clear(ctx context.Context, connID, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId required", ErrParamInvalid)
	}

	var board *canvas.Board
	s.mu.Lock()
	if r := s.room(connID, roomID); r != nil {
		r.state = BoardIdle
		board = r.board
	}
	s.mu.Unlock()

	if board != nil {
		board.Clear()
	}
	return s.bc.EmitTo([]string{roomID}, consts.EventWbClear, roomID, connID)
}

// RequestState 转发给其他成员；房间里没有其他成员时由影子画板直接应答
func (s *whiteboardServiceImpl) RequestState(ctx context.Context, connID, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId required", ErrParamInvalid)
	}

	others := s.bc.RoomSize(roomID)
	if s.bc.InRoom(connID, roomID) {
		others--
	}
	if others > 0 {
		return s.bc.EmitTo([]string{roomID}, consts.EventWbRequestState,
			&dto.WbRequestStateDTO{RoomID: roomID, RequesterID: connID}, connID)
	}

	s.mu.Lock()
	r, ok := s.rooms[roomID]
	var board *canvas.Board
	if ok && r.state == BoardLive {
		board = r.board
	}
	s.mu.Unlock()
	if board == nil {
		return nil
	}

	image, err := board.CaptureSnapshot()
	if err != nil {
		return err
	}
	log.DebugContext(ctx, "whiteboard state served from shadow board", "roomId", roomID)
	return s.bc.EmitToConn(connID, consts.EventWbUpdateState, &dto.WbUpdateStateDTO{RoomID: roomID, Image: image})
}

// SendState 快照只投递给请求方的连接
func (s *whiteboardServiceImpl) SendState(ctx context.Context, connID string, req *dto.WbSendStateReq) error {
	if err := util.ValidateDTO(req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}

	var board *canvas.Board
	s.mu.Lock()
	r := s.room(connID, req.RoomID)
	if r != nil {
		board = r.board
	}
	s.mu.Unlock()

	if board != nil {
		if err := board.Load(req.Image); err != nil {
			log.WarnContext(ctx, "shadow board rejected snapshot", "roomId", req.RoomID, "err", err)
		} else {
			s.mu.Lock()
			r.state = BoardLive
			s.mu.Unlock()
		}
	}

	return s.bc.EmitToConn(req.RequesterID, consts.EventWbUpdateState,
		&dto.WbUpdateStateDTO{RoomID: req.RoomID, Image: req.Image})
}

func (s *whiteboardServiceImpl) State(roomID string) BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		return r.state
	}
	return BoardIdle
}

func (s *whiteboardServiceImpl) SweepIdle(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for roomID, r := range s.rooms {
		if now.Sub(r.lastActive) < ttl || s.bc.RoomSize(roomID) > 0 {
			continue
		}
		if r.board != nil {
			s.boards--
		}
		delete(s.rooms, roomID)
		swept++
	}
	return swept
}

func (s *whiteboardServiceImpl) Rooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
