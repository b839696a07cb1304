package service

import (
	"Solace/internal/api/config"
	"Solace/internal/api/dto"
	"Solace/internal/model"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/kafka"
	"Solace/internal/pkg/mongo"
	"Solace/internal/pkg/util"
	"Solace/internal/repository"
	"context"
	"fmt"
	"hash/crc32"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	convLockStripes  = 64
	maxHistoryPage   = 100
	eventMessageSent = "message.sent"
	// lastAtRetention 超过该时长未发消息的会话不再保留上次时间戳
	lastAtRetention  = time.Minute
)

type ChatService interface {
	JoinRoom(ctx context.Context, connID, conversationID string) error
	// SendMessage 持久化后按会话顺序广播，存储失败时不广播
	SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	MarkAsRead(ctx context.Context, conversationID, readerID string) error
	// Typing 转发 typing / stopTyping
	Typing(ctx context.Context, connID, event string, raw json.RawMessage) error
	GetHistory(ctx context.Context, callerID, conversationID, before string, pageSize int) ([]*dto.MessageDTO, error)
	ListConversations(ctx context.Context, callerID string) ([]*dto.ConversationDTO, error)
}

type chatServiceImpl struct {
	bc          Broadcaster
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	publisher   kafka.EventPublisher
	cfg         config.ChatConfig

	stripes [convLockStripes]convStripe
}

// convStripe 一组会话共用的锁，lastAt 只在持锁时读写
type convStripe struct {
	mu      sync.Mutex
	lastAt  map[string]time.Time
	sweptAt time.Time
}

func NewChatService(
	bc Broadcaster,
	convRepo repository.ConversationRepo,
	messageRepo mongo.MessageRepo,
	publisher kafka.EventPublisher,
	cfg config.ChatConfig,
) ChatService {
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 30
	}
	return &chatServiceImpl{
		bc:          bc,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// stripe 同一会话总是落在同一把锁上
func (s *chatServiceImpl) stripe(conversationID string) *convStripe {
	return &s.stripes[crc32.ChecksumIEEE([]byte(conversationID))%convLockStripes]
}

func (s *chatServiceImpl) JoinRoom(ctx context.Context, connID, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversationId required", ErrParamInvalid)
	}
	return s.bc.Join(connID, conversationID)
}

func (s *chatServiceImpl) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if err := util.ValidateDTO(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if req.ContentType == "" {
		req.ContentType = consts.ContentTypeText
	}

	res, err := s.sendLocked(ctx, req)
	if err != nil {
		return nil, err
	}

	// 事件投递在释放会话锁之后，Kafka 阻塞不影响后续发送
	if err = s.publisher.Publish(ctx, res.ConversationID, &dto.MessageSentEvent{
		Type:           eventMessageSent,
		MessageID:      res.ID,
		ConversationID: res.ConversationID,
		Sender:         res.Sender,
		SenderModel:    res.SenderModel,
		ContentType:    res.ContentType,
		CreatedAt:      res.CreatedAt,
	}); err != nil {
		log.WarnContext(ctx, "publish message event failed", "messageId", res.ID, "err", err)
	}
	return res, nil
}

// sendLocked 持会话锁完成落库与广播，保证同一会话内的投递顺序
func (s *chatServiceImpl) sendLocked(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	st := s.stripe(req.ConversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	conv, err := s.convRepo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		log.ErrorContext(ctx, "load conversation failed", "conversationId", req.ConversationID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	senderSide := conv.SideOf(req.Sender)
	if senderSide == model.SideNone {
		return nil, ErrNotParticipant
	}
	if req.SenderModel == "" {
		req.SenderModel = kindOfSide(senderSide)
	} else if req.SenderModel != kindOfSide(senderSide) {
		return nil, fmt.Errorf("%w: senderModel does not match sender", ErrParamInvalid)
	}
	recipient := model.SideExpert
	if senderSide == model.SideExpert {
		recipient = model.SideUser
	}

	msg := &mongo.Message{
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		SenderModel:    req.SenderModel,
		Content:        req.Content,
		ContentType:    req.ContentType,
		ReplyTo:        req.ReplyTo,
		ReadBy:         []string{req.Sender},
		CreatedAt:      st.nextCreatedAt(req.ConversationID, time.Now()),
	}
	if err = s.messageRepo.SaveMessage(ctx, msg); err != nil {
		log.ErrorContext(ctx, "save message failed", "conversationId", req.ConversationID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	preview := util.MessagePreview(msg.ContentType, msg.Content)
	updated, err := s.convRepo.ApplyMessage(ctx, req.ConversationID, preview, req.Sender, msg.CreatedAt, recipient)
	if err != nil {
		log.ErrorContext(ctx, "update conversation failed",
			"conversationId", req.ConversationID, "messageId", msg.ID.Hex(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res := toMessageDTO(msg)
	if msg.ReplyTo != "" {
		if ref, err := s.messageRepo.GetMessageByID(ctx, msg.ReplyTo); err != nil {
			log.WarnContext(ctx, "load replied message failed", "replyTo", msg.ReplyTo, "err", err)
		} else if ref != nil {
			res.ReplyTo = toMessageDTO(ref)
		}
	}

	if err = s.bc.EmitTo([]string{conv.ID}, consts.EventReceiveMessage, res, ""); err != nil {
		log.WarnContext(ctx, "broadcast message failed", "conversationId", conv.ID, "err", err)
	}
	if err = s.bc.EmitTo([]string{conv.ID, conv.UserID, conv.ExpertID}, consts.EventConversationUpdated, &dto.ConversationUpdatedDTO{
		ConversationID:    updated.ID,
		LastMessage:       updated.LastMessage,
		LastMessageAt:     updated.LastMessageAt,
		LastMessageSender: updated.LastMessageSender,
		UserUnreadCount:   updated.UserUnreadCount,
		ExpertUnreadCount: updated.ExpertUnreadCount,
	}, ""); err != nil {
		log.WarnContext(ctx, "broadcast conversation update failed", "conversationId", conv.ID, "err", err)
	}
	return res, nil
}

// nextCreatedAt 毫秒精度，同一会话内不回退；调用方持有 st.mu。
// 顺带清理 lastAtRetention 之前的记录
func (st *convStripe) nextCreatedAt(conversationID string, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if st.lastAt == nil {
		st.lastAt = make(map[string]time.Time)
	}
	if now.Sub(st.sweptAt) >= lastAtRetention {
		for id, last := range st.lastAt {
			if now.Sub(last) >= lastAtRetention {
				delete(st.lastAt, id)
			}
		}
		st.sweptAt = now
	}
	if last, ok := st.lastAt[conversationID]; ok && now.Before(last) {
		now = last
	}
	st.lastAt[conversationID] = now
	return now
}

// MarkAsRead 幂等，只清零调用方自己的未读数
func (s *chatServiceImpl) MarkAsRead(ctx context.Context, conversationID, readerID string) error {
	req := &dto.MarkAsReadReq{ConversationID: conversationID, UserID: readerID}
	if err := util.ValidateDTO(req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}

	conv, err := s.participant(ctx, conversationID, readerID)
	if err != nil {
		return err
	}
	if err = s.markReadLocked(ctx, conv, readerID); err != nil {
		return err
	}

	return s.bc.EmitTo([]string{conversationID}, consts.EventMessagesRead, &dto.MessagesReadDTO{
		ConversationID: conversationID,
		ReadByUserID:   readerID,
	}, "")
}

// markReadLocked 与 SendMessage 共用会话锁，已读标记和未读清零之间不会插入新消息
func (s *chatServiceImpl) markReadLocked(ctx context.Context, conv *model.Conversation, readerID string) error {
	st := s.stripe(conv.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	modified, err := s.messageRepo.MarkRead(ctx, conv.ID, readerID)
	if err != nil {
		log.ErrorContext(ctx, "mark messages read failed", "conversationId", conv.ID, "err", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err = s.convRepo.ResetUnread(ctx, conv.ID, conv.SideOf(readerID)); err != nil {
		log.ErrorContext(ctx, "reset unread failed", "conversationId", conv.ID, "err", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	log.DebugContext(ctx, "messages marked read", "conversationId", conv.ID, "reader", readerID, "modified", modified)
	return nil
}

func (s *chatServiceImpl) Typing(ctx context.Context, connID, event string, raw json.RawMessage) error {
	var req dto.TypingReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	if err := util.ValidateDTO(&req); err != nil {
		return fmt.Errorf("%w: %v", ErrParamInvalid, err)
	}
	return s.bc.EmitTo([]string{req.ConversationID}, event, raw, connID)
}

// GetHistory 仅会话参与者可查，结果按时间正序
func (s *chatServiceImpl) GetHistory(ctx context.Context, callerID, conversationID, before string, pageSize int) ([]*dto.MessageDTO, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversationId required", ErrParamInvalid)
	}
	if before != "" && !primitive.IsValidObjectID(before) {
		return nil, fmt.Errorf("%w: invalid cursor", ErrParamInvalid)
	}
	if pageSize <= 0 {
		pageSize = s.cfg.HistoryPageSize
	}
	if pageSize > maxHistoryPage {
		pageSize = maxHistoryPage
	}

	if _, err := s.participant(ctx, conversationID, callerID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.GetHistory(ctx, conversationID, before, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	res := make([]*dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		res = append(res, toMessageDTO(m))
	}
	return res, nil
}

func (s *chatServiceImpl) ListConversations(ctx context.Context, callerID string) ([]*dto.ConversationDTO, error) {
	convs, err := s.convRepo.ListByParticipant(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		item := &dto.ConversationDTO{}
		_ = copier.Copy(item, c)
		item.UnreadCount = c.UserUnreadCount
		if c.SideOf(callerID) == model.SideExpert {
			item.UnreadCount = c.ExpertUnreadCount
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *chatServiceImpl) participant(ctx context.Context, conversationID, identityID string) (*model.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.SideOf(identityID) == model.SideNone {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

var objectIDConverter = copier.TypeConverter{
	SrcType: primitive.ObjectID{},
	DstType: copier.String,
	Fn: func(src interface{}) (interface{}, error) {
		return src.(primitive.ObjectID).Hex(), nil
	},
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	res := &dto.MessageDTO{}
	_ = copier.CopyWithOption(res, m, copier.Option{
		Converters: []copier.TypeConverter{objectIDConverter},
	})
	res.ReplyTo = nil
	if m.ReplyTo != "" {
		res.ReplyTo = m.ReplyTo
	}
	return res
}

func kindOfSide(side model.Side) string {
	if side == model.SideExpert {
		return consts.KindExpert
	}
	return consts.KindUser
}
