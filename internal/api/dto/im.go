package dto

import "time"

// SendMessageReq sendMessage 事件载荷
type SendMessageReq struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Sender         string `json:"sender" validate:"required"`
	SenderModel    string `json:"senderModel" validate:"omitempty,oneof=User Expert"`
	Content        string `json:"content" validate:"required"`
	ContentType    string `json:"contentType" validate:"omitempty,oneof=text image audio pdf"`
	ReplyTo        string `json:"replyTo"`
}

// MessageDTO 完整消息，replyTo 为被回复消息（存在时）或原始 ID
type MessageDTO struct {
	ID             string      `json:"_id"`
	ConversationID string      `json:"conversationId"`
	Sender         string      `json:"sender"`
	SenderModel    string      `json:"senderModel"`
	Content        string      `json:"content"`
	ContentType    string      `json:"contentType"`
	ReplyTo        interface{} `json:"replyTo,omitempty"`
	ReadBy         []string    `json:"readBy"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ConversationUpdatedDTO 收件箱列表使用的轻量更新
type ConversationUpdatedDTO struct {
	ConversationID    string     `json:"conversationId"`
	LastMessage       string     `json:"lastMessage"`
	LastMessageAt     *time.Time `json:"lastMessageAt"`
	LastMessageSender string     `json:"lastMessageSender"`
	UserUnreadCount   int64      `json:"userUnreadCount"`
	ExpertUnreadCount int64      `json:"expertUnreadCount"`
}

// ConversationDTO 会话列表项，UnreadCount 为调用方自己的未读数
type ConversationDTO struct {
	ID                string     `json:"conversationId"`
	UserID            string     `json:"userId"`
	ExpertID          string     `json:"expertId"`
	LastMessage       string     `json:"lastMessage"`
	LastMessageAt     *time.Time `json:"lastMessageAt"`
	LastMessageSender string     `json:"lastMessageSender"`
	UnreadCount       int64      `json:"unreadCount"`
}

// MarkAsReadReq markAsRead 事件载荷
type MarkAsReadReq struct {
	ConversationID string `json:"conversationId" binding:"required" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

// MessagesReadDTO 已读回执广播
type MessagesReadDTO struct {
	ConversationID string `json:"conversationId"`
	ReadByUserID   string `json:"readByUserId"`
}

// TypingReq typing / stopTyping 载荷
type TypingReq struct {
	ConversationID string `json:"conversationId" validate:"required"`
	TyperID        string `json:"typerId"`
}

// MessageSentEvent 投递到 Kafka 的消息事件
type MessageSentEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	SenderModel    string    `json:"senderModel"`
	ContentType    string    `json:"contentType"`
	CreatedAt      time.Time `json:"createdAt"`
}
