package repository

import (
	"Solace/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, convID string) (*model.Conversation, error)
	ListByParticipant(ctx context.Context, identityID string) ([]*model.Conversation, error)

	ApplyMessage(ctx context.Context, convID, preview, sender string, at time.Time, recipient model.Side) (*model.Conversation, error)
	ResetUnread(ctx context.Context, convID string, side model.Side) error
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

// GetConversation 不存在时返回 nil, nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", convID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListByParticipant 按最近消息时间倒序列出身份参与的会话
func (s *conversationRepoImpl) ListByParticipant(ctx context.Context, identityID string) ([]*model.Conversation, error) {
	convs := make([]*model.Conversation, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR expert_id = ?", identityID, identityID).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

// ApplyMessage 单条 UPDATE 原子写入预览并递增接收方未读数，返回更新后的会话
func (s *conversationRepoImpl) ApplyMessage(ctx context.Context, convID, preview, sender string, at time.Time, recipient model.Side) (*model.Conversation, error) {
	column := recipient.UnreadColumn()
	if column == "" {
		return nil, errors.New("unknown recipient side")
	}

	var conv model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).Where("id = ?", convID).
			Updates(map[string]interface{}{
				"last_message":        preview,
				"last_message_at":     at,
				"last_message_sender": sender,
				column:                gorm.Expr(column + " + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", convID).First(&conv).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ResetUnread 清零某一方的未读数，不影响对方
func (s *conversationRepoImpl) ResetUnread(ctx context.Context, convID string, side model.Side) error {
	column := side.UnreadColumn()
	if column == "" {
		return errors.New("unknown side")
	}
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update(column, 0).Error
}
