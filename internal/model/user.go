package model

import (
	"time"
)

type User struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)"`
	Name      string     `gorm:"type:varchar(100)"`
	IsOnline  bool       `gorm:"not null;default:false"`
	LastSeen  *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

type Expert struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)"`
	Name      string     `gorm:"type:varchar(100)"`
	Title     string     `gorm:"type:varchar(100)"`
	IsOnline  bool       `gorm:"not null;default:false"`
	LastSeen  *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Expert) TableName() string {
	return "experts"
}

// Presence 在线状态投影
type Presence struct {
	IsOnline bool
	LastSeen *time.Time
}
