package model

import "time"

// Conversation 用户与专家的一对一会话，冗余存储最新消息预览与双方未读数
type Conversation struct {
	ID                string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID            string     `gorm:"type:varchar(64);not null;index" json:"userId"`
	ExpertID          string     `gorm:"type:varchar(64);not null;index" json:"expertId"`
	LastMessage       string     `gorm:"type:text" json:"lastMessage"`
	LastMessageAt     *time.Time `gorm:"index" json:"lastMessageAt"`
	LastMessageSender string     `gorm:"type:varchar(64)" json:"lastMessageSender"`
	UserUnreadCount   int64      `gorm:"not null;default:0" json:"userUnreadCount"`
	ExpertUnreadCount int64      `gorm:"not null;default:0" json:"expertUnreadCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }

// Side 会话中的一方
type Side int8

const (
	SideNone Side = iota
	SideUser
	SideExpert
)

// SideOf 判断 identityID 属于会话哪一方
func (c *Conversation) SideOf(identityID string) Side {
	switch identityID {
	case c.UserID:
		return SideUser
	case c.ExpertID:
		return SideExpert
	default:
		return SideNone
	}
}

// UnreadColumn 该方未读计数所在列
func (s Side) UnreadColumn() string {
	switch s {
	case SideUser:
		return "user_unread_count"
	case SideExpert:
		return "expert_unread_count"
	default:
		return ""
	}
}
