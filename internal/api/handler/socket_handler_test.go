package handler

import (
	"Solace/internal/api/config"
	"Solace/internal/api/dto"
	"Solace/internal/model"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/kafka"
	"Solace/internal/pkg/mongo"
	"Solace/internal/pkg/redis"
	"Solace/internal/pkg/security"
	"Solace/internal/pkg/socket"
	"Solace/internal/repository"
	"Solace/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memMessages 内存消息存储
type memMessages struct {
	mu   sync.Mutex
	msgs []*mongo.Message
}

func (m *memMessages) SaveMessage(ctx context.Context, msg *mongo.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memMessages) GetMessageByID(ctx context.Context, id string) (*mongo.Message, error) {
	return nil, nil
}

func (m *memMessages) GetHistory(ctx context.Context, convID, before string, pageSize int) ([]*mongo.Message, error) {
	return nil, nil
}

func (m *memMessages) MarkRead(ctx context.Context, convID, readerID string) (int64, error) {
	return 0, nil
}

type gateway struct {
	server *socket.Server
	ts     *httptest.Server
}

func newGateway(t *testing.T, requireToken bool) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.Init(config.JWTConfig{Secret: "gateway-secret"})

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	prev := redis.Rdb
	redis.Rdb = client
	t.Cleanup(func() {
		redis.Rdb = prev
		_ = client.Close()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Conversation{}, &model.User{}, &model.Expert{}))
	require.NoError(t, db.Create(&model.User{ID: "u1"}).Error)
	require.NoError(t, db.Create(&model.Expert{ID: "e1"}).Error)
	require.NoError(t, db.Create(&model.Conversation{ID: "conv-1", UserID: "u1", ExpertID: "e1"}).Error)

	server := socket.NewServer(socket.Options{AckMapper: AckMapper})
	publisher, err := kafka.NewEventPublisher(config.KafkaConfig{})
	require.NoError(t, err)

	resolver := service.NewIdentityResolver(repository.NewUserRepo(db), repository.NewExpertRepo(db))
	h := NewSocketHandler(server, resolver,
		service.NewPresenceService(server, resolver),
		service.NewSignalingService(server, 2),
		service.NewWhiteboardService(server, config.WhiteboardConfig{Width: 32, Height: 32}),
		service.NewChatService(server, repository.NewConversationRepo(db), &memMessages{}, publisher, config.ChatConfig{}),
		requireToken,
	)

	r := gin.New()
	r.GET("/socket", h.Serve)
	r.POST("/socket", h.Serve)
	r.GET("/stats", h.Stats)

	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		server.Close()
	})
	return &gateway{server: server, ts: ts}
}

func (g *gateway) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ws, resp, err := g.tryDial(query)
	require.NoError(t, err, "status %v", resp)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (g *gateway) tryDial(query string) (*websocket.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(g.ts.URL, "http") + "/socket?" + query
	return websocket.DefaultDialer.Dial(u, nil)
}

func (g *gateway) waitConns(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.server.Stats().Connections == n }, 2*time.Second, 10*time.Millisecond)
}

func emit(t *testing.T, ws *websocket.Conn, event string, data any, ack uint64) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(&socket.Frame{Event: event, Data: raw, Ack: ack})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

// next 读取下一个指定事件的帧，跳过其他事件
func next(t *testing.T, ws *websocket.Conn, event string) socket.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, ws.SetReadDeadline(deadline))
		_, b, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var f socket.Frame
		require.NoError(t, json.Unmarshal(b, &f))
		if f.Event == event {
			return f
		}
	}
}

func ackOf(t *testing.T, ws *websocket.Conn) socket.AckResult {
	t.Helper()
	var res socket.AckResult
	require.NoError(t, json.Unmarshal(next(t, ws, socket.EventAck).Data, &res))
	return res
}

func TestGateway_PresenceLifecycle(t *testing.T) {
	g := newGateway(t, false)
	observer := g.dial(t, "")
	g.waitConns(t, 1)

	expert := g.dial(t, "identityId=e1&identityKind=Expert")

	var online dto.UserStatusDTO
	require.NoError(t, json.Unmarshal(next(t, observer, consts.EventUserStatusChanged).Data, &online))
	assert.Equal(t, "e1", online.IdentityID)
	assert.True(t, online.IsOnline)

	require.NoError(t, expert.Close())

	var offline dto.UserStatusDTO
	require.NoError(t, json.Unmarshal(next(t, observer, consts.EventUserStatusChanged).Data, &offline))
	assert.Equal(t, "e1", offline.IdentityID)
	assert.False(t, offline.IsOnline)
	assert.False(t, offline.LastSeen.Before(online.LastSeen))
}

func TestGateway_InvalidKindIsAnonymous(t *testing.T) {
	g := newGateway(t, false)
	observer := g.dial(t, "")
	g.waitConns(t, 1)

	_ = g.dial(t, "identityId=e1&identityKind=Robot")
	g.waitConns(t, 2)

	require.NoError(t, observer.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := observer.ReadMessage()
	assert.Error(t, err, "anonymous connections do not broadcast presence")
}

func TestGateway_ChatFlow(t *testing.T) {
	g := newGateway(t, false)
	user := g.dial(t, "identityId=u1&identityKind=User")
	expert := g.dial(t, "identityId=e1&identityKind=Expert")
	g.waitConns(t, 2)

	emit(t, user, consts.EventJoinRoom, "conv-1", 1)
	require.True(t, ackOf(t, user).OK)
	emit(t, expert, consts.EventJoinRoom, map[string]string{"conversationId": "conv-1"}, 1)
	require.True(t, ackOf(t, expert).OK)

	emit(t, user, consts.EventSendMessage, map[string]string{
		"conversationId": "conv-1", "sender": "u1", "senderModel": "User", "content": "hi there",
	}, 2)

	var msg dto.MessageDTO
	require.NoError(t, json.Unmarshal(next(t, expert, consts.EventReceiveMessage).Data, &msg))
	assert.Equal(t, "hi there", msg.Content)
	assert.Equal(t, []string{"u1"}, msg.ReadBy)

	var up dto.ConversationUpdatedDTO
	require.NoError(t, json.Unmarshal(next(t, expert, consts.EventConversationUpdated).Data, &up))
	assert.EqualValues(t, 1, up.ExpertUnreadCount)

	assert.True(t, ackOf(t, user).OK)

	// 校验失败与未知会话通过回执告知
	emit(t, user, consts.EventSendMessage, map[string]string{"conversationId": "conv-1"}, 3)
	res := ackOf(t, user)
	assert.False(t, res.OK)
	assert.Equal(t, service.KindValidation, res.Error)

	emit(t, user, consts.EventSendMessage, map[string]string{"conversationId": "nope", "sender": "u1", "content": "x"}, 4)
	assert.Equal(t, service.KindNotFound, ackOf(t, user).Error)

	emit(t, user, "dance", nil, 5)
	assert.Equal(t, service.KindUnknownEvent, ackOf(t, user).Error)

	// 专家通过自身连接身份标记已读
	emit(t, expert, consts.EventMarkAsRead, map[string]string{"conversationId": "conv-1"}, 6)
	var read dto.MessagesReadDTO
	require.NoError(t, json.Unmarshal(next(t, user, consts.EventMessagesRead).Data, &read))
	assert.Equal(t, "e1", read.ReadByUserID)
}

func TestGateway_CallCapacity(t *testing.T) {
	g := newGateway(t, false)
	a := g.dial(t, "")
	b := g.dial(t, "")
	c := g.dial(t, "")
	g.waitConns(t, 3)

	emit(t, a, consts.EventJoinVideo, "call-1", 1)
	require.True(t, ackOf(t, a).OK)
	emit(t, b, consts.EventJoinVideo, "call-1", 1)
	require.True(t, ackOf(t, b).OK)

	emit(t, c, consts.EventJoinVideo, "call-1", 1)
	var full dto.CallFullDTO
	require.NoError(t, json.Unmarshal(next(t, c, consts.EventCallFull).Data, &full))
	assert.Equal(t, 2, full.MaxPeers)
	assert.Equal(t, service.KindCapacityExceeded, ackOf(t, c).Error)

	emit(t, a, consts.EventOffer, map[string]any{"roomId": "call-1", "sdp": "v=0"}, 0)
	offer := next(t, b, consts.EventOffer)
	assert.JSONEq(t, `{"roomId":"call-1","sdp":"v=0"}`, string(offer.Data))

	emit(t, c, consts.EventOffer, map[string]any{"roomId": "call-1", "sdp": "v=0"}, 2)
	assert.Equal(t, service.KindForbidden, ackOf(t, c).Error)

	require.NoError(t, a.Close())
	var left dto.PeerDTO
	require.NoError(t, json.Unmarshal(next(t, b, consts.EventUserLeft).Data, &left))
	assert.Equal(t, "call-1", left.RoomID)
}

func TestGateway_RequireToken(t *testing.T) {
	g := newGateway(t, true)

	_, resp, err := g.tryDial("identityId=u1&identityKind=User")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = g.tryDial("token=garbage")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	observer, _, err := g.tryDial("token=" + mustToken(t, "u1", consts.KindUser))
	require.NoError(t, err)
	defer observer.Close()
	g.waitConns(t, 1)

	// Token 中的身份覆盖查询参数
	token := mustToken(t, "e1", consts.KindExpert)
	ws := g.dial(t, "identityId=u1&identityKind=User&token="+token)
	var online dto.UserStatusDTO
	require.NoError(t, json.Unmarshal(next(t, observer, consts.EventUserStatusChanged).Data, &online))
	assert.Equal(t, "e1", online.IdentityID)
	_ = ws
}

func TestGateway_Stats(t *testing.T) {
	g := newGateway(t, false)
	_ = g.dial(t, "")
	g.waitConns(t, 1)

	resp, err := http.Get(g.ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Code int
		Data dto.SocketStatsDTO
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 200, body.Code)
	assert.Equal(t, 1, body.Data.Connections)
}

func mustToken(t *testing.T, id, kind string) string {
	t.Helper()
	token, err := security.GenerateToken(id, kind)
	require.NoError(t, err)
	return token
}
