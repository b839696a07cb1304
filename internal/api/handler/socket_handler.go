package handler

import (
	"Solace/internal/api/dto"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/response"
	"Solace/internal/pkg/security"
	"Solace/internal/pkg/socket"
	"Solace/internal/service"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

const connIdentityKey = "identity"

// SocketHandler 实时连接入口：握手鉴权、身份生命周期与事件分发
type SocketHandler struct {
	server       *socket.Server
	resolver     service.IdentityResolver
	presence     service.PresenceService
	signaling    service.SignalingService
	whiteboard   service.WhiteboardService
	chat         service.ChatService
	requireToken bool
}

func NewSocketHandler(
	server *socket.Server,
	resolver service.IdentityResolver,
	presence service.PresenceService,
	signaling service.SignalingService,
	whiteboard service.WhiteboardService,
	chat service.ChatService,
	requireToken bool,
) *SocketHandler {
	s := &SocketHandler{
		server:       server,
		resolver:     resolver,
		presence:     presence,
		signaling:    signaling,
		whiteboard:   whiteboard,
		chat:         chat,
		requireToken: requireToken,
	}
	s.register()
	return s
}

// AckMapper 将事件错误映射为回执类型
func AckMapper(err error) (string, string) {
	if errors.Is(err, socket.ErrUnknownEvent) {
		return service.KindUnknownEvent, err.Error()
	}
	return service.AckKind(err)
}

func (s *SocketHandler) register() {
	s.server.OnConnect(s.onConnect)
	s.server.OnDisconnect(s.onDisconnect)

	// 信令
	s.server.On(consts.EventJoinVideo, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data, "roomId")
		if err != nil {
			return err
		}
		return s.signaling.Join(ctx, c.ID(), roomID)
	})
	s.server.On(consts.EventClientReady, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data, "roomId")
		if err != nil {
			return err
		}
		return s.signaling.Ready(ctx, c.ID(), roomID)
	})
	for _, ev := range []string{consts.EventOffer, consts.EventAnswer, consts.EventIceCandidate} {
		event := ev
		s.server.On(event, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
			return s.signaling.Relay(ctx, c.ID(), event, data)
		})
	}

	// 白板
	s.server.On(consts.EventWbDraw, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		return s.whiteboard.Draw(ctx, c.ID(), data)
	})
	s.server.On(consts.EventWbClear, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data, "roomId")
		if err != nil {
			return err
		}
		return s.whiteboard.Clear(ctx, c.ID(), roomID)
	})
	s.server.On(consts.EventWbRequestState, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data, "roomId")
		if err != nil {
			return err
		}
		return s.whiteboard.RequestState(ctx, c.ID(), roomID)
	})
	s.server.On(consts.EventWbSendState, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		var req dto.WbSendStateReq
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
		}
		return s.whiteboard.SendState(ctx, c.ID(), &req)
	})

	// 聊天
	s.server.On(consts.EventJoinRoom, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		convID, err := decodeRoomID(data, "conversationId")
		if err != nil {
			return err
		}
		return s.chat.JoinRoom(ctx, c.ID(), convID)
	})
	s.server.On(consts.EventSendMessage, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		var req dto.SendMessageReq
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
		}
		_, err := s.chat.SendMessage(ctx, &req)
		return err
	})
	s.server.On(consts.EventMarkAsRead, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
		var req dto.MarkAsReadReq
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
		}
		if req.UserID == "" {
			if ident := identityOf(c); ident != nil {
				req.UserID = ident.ID()
			}
		}
		return s.chat.MarkAsRead(ctx, req.ConversationID, req.UserID)
	})
	for _, ev := range []string{consts.EventTyping, consts.EventStopTyping} {
		event := ev
		s.server.On(event, func(ctx context.Context, c *socket.Conn, data json.RawMessage) error {
			return s.chat.Typing(ctx, c.ID(), event, data)
		})
	}
}

// Serve 握手阶段校验 Token，Token 中的身份覆盖查询参数
func (s *SocketHandler) Serve(c *gin.Context) {
	q := c.Request.URL.Query()
	if q.Get("sid") == "" {
		token := q.Get("token")
		var claims *security.IdentityClaims
		var err error
		if token != "" {
			claims, err = security.ValidateToken(token)
		}
		switch {
		case claims != nil:
			q.Set("identityId", claims.IdentityID)
			q.Set("identityKind", claims.IdentityKind)
		case s.requireToken:
			log.WarnContext(c.Request.Context(), "socket handshake rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Response{
				Code:    response.Unauthorized,
				Message: "Token 无效或已过期",
			})
			return
		case err != nil:
			log.InfoContext(c.Request.Context(), "socket token ignored", "err", err)
		}
		q.Del("token")
		c.Request.URL.RawQuery = q.Encode()
	}

	s.server.ServeHTTP(c.Writer, c.Request)
}

// Stats 本节点连接、通话与白板数量
func (s *SocketHandler) Stats(c *gin.Context) {
	st := s.server.Stats()
	response.Success(c, &dto.SocketStatsDTO{
		Connections: st.Connections,
		Rooms:       st.Rooms,
		Polling:     st.Polling,
		Calls:       s.signaling.Sessions(),
		Whiteboards: s.whiteboard.Rooms(),
	})
}

func (s *SocketHandler) onConnect(ctx context.Context, c *socket.Conn) {
	id := c.Query().Get("identityId")
	if id == "" {
		return
	}
	ident, err := s.resolver.Parse(id, c.Query().Get("identityKind"))
	if err != nil {
		log.WarnContext(ctx, "invalid identity, connection treated as anonymous", "identityId", id, "err", err)
		return
	}
	c.Set(connIdentityKey, ident)

	if err = s.server.Join(c.ID(), ident.ID()); err != nil {
		log.WarnContext(ctx, "join personal room failed", "identityId", ident.ID(), "err", err)
	}
	if err = s.presence.Online(ctx, ident, c.ID()); err != nil {
		log.WarnContext(ctx, "presence online failed", "identityId", ident.ID(), "err", err)
	}
}

func (s *SocketHandler) onDisconnect(ctx context.Context, c *socket.Conn) {
	if ident := identityOf(c); ident != nil {
		if err := s.presence.Offline(ctx, ident, c.ID()); err != nil {
			log.WarnContext(ctx, "presence offline failed", "identityId", ident.ID(), "err", err)
		}
	}
	s.signaling.LeaveAll(ctx, c.ID())
}

func identityOf(c *socket.Conn) service.Identity {
	v, ok := c.Get(connIdentityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(service.Identity)
	return ident
}

// decodeRoomID 载荷可以是房间 ID 字符串，也可以是带 key 字段的对象
func decodeRoomID(data json.RawMessage, key string) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return "", fmt.Errorf("%w: %s required", service.ErrParamInvalid, key)
		}
		return id, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", service.ErrParamInvalid, err)
	}
	id, _ = obj[key].(string)
	if id == "" {
		return "", fmt.Errorf("%w: %s required", service.ErrParamInvalid, key)
	}
	return id, nil
}
