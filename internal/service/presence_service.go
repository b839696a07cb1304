package service

import (
	"Solace/internal/api/dto"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/redis"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"
)

const presenceCacheTTL = 24 * time.Hour

type PresenceService interface {
	// Online 标记在线并向其他所有连接广播，存储失败只记录日志
	Online(ctx context.Context, ident Identity, connID string) error
	// Offline 标记离线并广播，尽力而为不重试
	Offline(ctx context.Context, ident Identity, connID string) error
	GetPresence(ctx context.Context, id, kind string) (*dto.PresenceDTO, error)
}

type presenceServiceImpl struct {
	bc       Broadcaster
	resolver IdentityResolver
}

func NewPresenceService(bc Broadcaster, resolver IdentityResolver) PresenceService {
	return &presenceServiceImpl{bc: bc, resolver: resolver}
}

func (s *presenceServiceImpl) Online(ctx context.Context, ident Identity, connID string) error {
	return s.transition(ctx, ident, true, connID)
}

func (s *presenceServiceImpl) Offline(ctx context.Context, ident Identity, connID string) error {
	return s.transition(ctx, ident, false, connID)
}

func (s *presenceServiceImpl) transition(ctx context.Context, ident Identity, online bool, connID string) error {
	at := time.Now()

	if err := ident.SetOnline(ctx, online, at); err != nil {
		log.WarnContext(ctx, "presence store update failed",
			"identityId", ident.ID(), "kind", ident.Kind(), "online", online, "err", err)
	}
	if err := s.cache(ctx, ident.Kind(), ident.ID(), online, &at); err != nil {
		log.WarnContext(ctx, "presence cache update failed", "identityId", ident.ID(), "err", err)
	}

	return s.bc.EmitAll(consts.EventUserStatusChanged, &dto.UserStatusDTO{
		IdentityID:   ident.ID(),
		IdentityKind: ident.Kind(),
		IsOnline:     online,
		LastSeen:     at,
	}, connID)
}

// GetPresence 优先读缓存，未命中回源数据库并回填
func (s *presenceServiceImpl) GetPresence(ctx context.Context, id, kind string) (*dto.PresenceDTO, error) {
	ident, err := s.resolver.Parse(id, kind)
	if err != nil {
		return nil, err
	}

	fields, err := redis.HGetAll(ctx, presenceKey(kind, id))
	if err != nil {
		log.WarnContext(ctx, "presence cache read failed", "identityId", id, "err", err)
	} else if len(fields) > 0 {
		res := &dto.PresenceDTO{IdentityID: id, IdentityKind: kind}
		res.IsOnline, _ = strconv.ParseBool(fields["isOnline"])
		if ms, err := strconv.ParseInt(fields["lastSeen"], 10, 64); err == nil && ms > 0 {
			t := time.UnixMilli(ms)
			res.LastSeen = &t
		}
		return res, nil
	}

	p, err := ident.Presence(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if p == nil {
		return nil, ErrIdentityNotFound
	}
	if err = s.cache(ctx, kind, id, p.IsOnline, p.LastSeen); err != nil {
		log.WarnContext(ctx, "presence cache refill failed", "identityId", id, "err", err)
	}
	return &dto.PresenceDTO{IdentityID: id, IdentityKind: kind, IsOnline: p.IsOnline, LastSeen: p.LastSeen}, nil
}

func (s *presenceServiceImpl) cache(ctx context.Context, kind, id string, online bool, lastSeen *time.Time) error {
	var ms int64
	if lastSeen != nil {
		ms = lastSeen.UnixMilli()
	}
	return redis.HSetWithExpiration(ctx, presenceKey(kind, id), map[string]interface{}{
		"isOnline": strconv.FormatBool(online),
		"lastSeen": strconv.FormatInt(ms, 10),
	}, presenceCacheTTL)
}

func presenceKey(kind, id string) string {
	return consts.PresenceKey + kind + ":" + id
}
