package repository

import (
	"Solace/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// IdentityRepo 身份在线状态存储，User 与 Expert 各一张表，行为一致
type IdentityRepo interface {
	SetOnline(ctx context.Context, id string, online bool, at time.Time) error
	GetPresence(ctx context.Context, id string) (*model.Presence, error)
}

type identityRepoImpl struct {
	db    *gorm.DB
	table string
}

func NewUserRepo(db *gorm.DB) IdentityRepo {
	return &identityRepoImpl{db: db, table: model.User{}.TableName()}
}

func NewExpertRepo(db *gorm.DB) IdentityRepo {
	return &identityRepoImpl{db: db, table: model.Expert{}.TableName()}
}

// SetOnline 翻转在线标记并记录 last_seen，身份不存在返回 gorm.ErrRecordNotFound
func (s *identityRepoImpl) SetOnline(ctx context.Context, id string, online bool, at time.Time) error {
	res := s.db.WithContext(ctx).Table(s.table).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":  online,
			"last_seen":  at,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetPresence 不存在时返回 nil, nil
func (s *identityRepoImpl) GetPresence(ctx context.Context, id string) (*model.Presence, error) {
	var p model.Presence
	err := s.db.WithContext(ctx).Table(s.table).
		Select("is_online, last_seen").
		Where("id = ?", id).
		Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
