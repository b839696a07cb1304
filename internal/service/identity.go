package service

import (
	"Solace/internal/model"
	"Solace/internal/pkg/consts"
	"Solace/internal/repository"
	"context"
	"fmt"
	"time"
)

// Identity 在线状态可被翻转的身份，User 与 Expert 各自绑定自己的存储
type Identity interface {
	ID() string
	Kind() string
	SetOnline(ctx context.Context, online bool, at time.Time) error
	Presence(ctx context.Context) (*model.Presence, error)
}

// IdentityResolver 由 (id, kind) 解析身份
type IdentityResolver interface {
	Parse(id, kind string) (Identity, error)
}

type identityResolverImpl struct {
	users   repository.IdentityRepo
	experts repository.IdentityRepo
}

func NewIdentityResolver(users, experts repository.IdentityRepo) IdentityResolver {
	return &identityResolverImpl{users: users, experts: experts}
}

// Parse kind 不是 User / Expert 时返回 ErrIdentityKind
func (s *identityResolverImpl) Parse(id, kind string) (Identity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrParamInvalid)
	}
	switch kind {
	case consts.KindUser:
		return &userIdentity{id: id, repo: s.users}, nil
	case consts.KindExpert:
		return &expertIdentity{id: id, repo: s.experts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrIdentityKind, kind)
	}
}

type userIdentity struct {
	id   string
	repo repository.IdentityRepo
}

func (u *userIdentity) ID() string   { return u.id }
func (u *userIdentity) Kind() string { return consts.KindUser }

func (u *userIdentity) SetOnline(ctx context.Context, online bool, at time.Time) error {
	return u.repo.SetOnline(ctx, u.id, online, at)
}

func (u *userIdentity) Presence(ctx context.Context) (*model.Presence, error) {
	return u.repo.GetPresence(ctx, u.id)
}

type expertIdentity struct {
	id   string
	repo repository.IdentityRepo
}

func (e *expertIdentity) ID() string   { return e.id }
func (e *expertIdentity) Kind() string { return consts.KindExpert }

func (e *expertIdentity) SetOnline(ctx context.Context, online bool, at time.Time) error {
	return e.repo.SetOnline(ctx, e.id, online, at)
}

func (e *expertIdentity) Presence(ctx context.Context) (*model.Presence, error) {
	return e.repo.GetPresence(ctx, e.id)
}
