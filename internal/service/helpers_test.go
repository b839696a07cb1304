package service

import (
	"Solace/internal/model"
	"Solace/internal/pkg/mongo"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errStoreDown = errors.New("store down")

// emitted 一次广播记录
type emitted struct {
	Rooms   []string
	Event   string
	Payload any
	Except  string
	ToConn  string
	All     bool
}

// payloadJSON 统一成 JSON 便于断言
func (e emitted) payloadJSON() string {
	if raw, ok := e.Payload.(json.RawMessage); ok {
		return string(raw)
	}
	b, _ := json.Marshal(e.Payload)
	return string(b)
}

// fakeBroadcaster 记录所有广播，房间成员关系在内存中维护
type fakeBroadcaster struct {
	mu     sync.Mutex
	rooms  map[string]map[string]struct{}
	events []emitted
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{rooms: make(map[string]map[string]struct{})}
}

func (f *fakeBroadcaster) Join(connID, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[room] == nil {
		f.rooms[room] = make(map[string]struct{})
	}
	f.rooms[room][connID] = struct{}{}
	return nil
}

func (f *fakeBroadcaster) Leave(connID, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[room], connID)
	return nil
}

func (f *fakeBroadcaster) InRoom(connID, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[room][connID]
	return ok
}

func (f *fakeBroadcaster) RoomSize(room string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[room])
}

func (f *fakeBroadcaster) EmitTo(rooms []string, event string, payload any, except string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{Rooms: rooms, Event: event, Payload: payload, Except: except})
	return nil
}

func (f *fakeBroadcaster) EmitAll(event string, payload any, except string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{All: true, Event: event, Payload: payload, Except: except})
	return nil
}

func (f *fakeBroadcaster) EmitToConn(connID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{ToConn: connID, Event: event, Payload: payload})
	return nil
}

func (f *fakeBroadcaster) byEvent(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []emitted
	for _, e := range f.events {
		if e.Event == event {
			res = append(res, e)
		}
	}
	return res
}

// receivers 按房间成员展开一次广播的实际接收连接
func (f *fakeBroadcaster) receivers(e emitted) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ToConn != "" {
		return []string{e.ToConn}
	}
	seen := make(map[string]struct{})
	for _, room := range e.Rooms {
		for id := range f.rooms[room] {
			if id != e.Except {
				seen[id] = struct{}{}
			}
		}
	}
	res := make([]string, 0, len(seen))
	for id := range seen {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

// memMessageRepo 内存消息存储
type memMessageRepo struct {
	mu      sync.Mutex
	msgs    []*mongo.Message
	saveErr error
}

func (m *memMessageRepo) SaveMessage(ctx context.Context, msg *mongo.Message) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	cp := *msg
	cp.ReadBy = append([]string(nil), msg.ReadBy...)
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *memMessageRepo) GetMessageByID(ctx context.Context, id string) (*mongo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID.Hex() == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memMessageRepo) GetHistory(ctx context.Context, convID string, before string, pageSize int) ([]*mongo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*mongo.Message
	for i := len(m.msgs) - 1; i >= 0 && len(res) < pageSize; i-- {
		msg := m.msgs[i]
		if msg.ConversationID != convID {
			continue
		}
		if before != "" && msg.ID.Hex() >= before {
			continue
		}
		res = append([]*mongo.Message{msg}, res...)
	}
	return res, nil
}

func (m *memMessageRepo) MarkRead(ctx context.Context, convID string, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs {
		if msg.ConversationID != convID || msg.Sender == readerID {
			continue
		}
		found := false
		for _, r := range msg.ReadBy {
			if r == readerID {
				found = true
				break
			}
		}
		if !found {
			msg.ReadBy = append(msg.ReadBy, readerID)
			n++
		}
	}
	return n, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.Conversation{}, &model.User{}, &model.Expert{}))
	return db
}
