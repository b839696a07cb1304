package service

import (
	"Solace/internal/api/dto"
	"Solace/internal/model"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/redis"
	"Solace/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPresence(t *testing.T) (PresenceService, IdentityResolver, *fakeBroadcaster, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	prev := redis.Rdb
	redis.Rdb = client
	t.Cleanup(func() {
		redis.Rdb = prev
		_ = client.Close()
	})

	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.User{ID: "u1", Name: "Ana"}).Error)
	require.NoError(t, db.Create(&model.Expert{ID: "e1", Name: "Dr. Bo", Title: "Therapist"}).Error)

	resolver := NewIdentityResolver(repository.NewUserRepo(db), repository.NewExpertRepo(db))
	bc := newFakeBroadcaster()
	return NewPresenceService(bc, resolver), resolver, bc, db, mr
}

func TestIdentityResolver_Parse(t *testing.T) {
	_, resolver, _, _, _ := setupPresence(t)

	ident, err := resolver.Parse("u1", consts.KindUser)
	require.NoError(t, err)
	assert.Equal(t, consts.KindUser, ident.Kind())

	ident, err = resolver.Parse("e1", consts.KindExpert)
	require.NoError(t, err)
	assert.Equal(t, consts.KindExpert, ident.Kind())

	_, err = resolver.Parse("u1", "Admin")
	assert.ErrorIs(t, err, ErrIdentityKind)
	_, err = resolver.Parse("", consts.KindUser)
	assert.ErrorIs(t, err, ErrParamInvalid)
}

// 连接后断开，观察方依次看到 online、offline，且 lastSeen 不回退
func TestPresence_OnlineThenOffline(t *testing.T) {
	svc, resolver, bc, db, mr := setupPresence(t)
	ctx := context.Background()

	ident, err := resolver.Parse("e1", consts.KindExpert)
	require.NoError(t, err)

	require.NoError(t, svc.Online(ctx, ident, "conn-1"))
	require.NoError(t, svc.Offline(ctx, ident, "conn-1"))

	events := bc.byEvent(consts.EventUserStatusChanged)
	require.Len(t, events, 2)
	first := events[0].Payload.(*dto.UserStatusDTO)
	second := events[1].Payload.(*dto.UserStatusDTO)
	assert.True(t, events[0].All)
	assert.Equal(t, "conn-1", events[0].Except)
	assert.True(t, first.IsOnline)
	assert.False(t, second.IsOnline)
	assert.Equal(t, "e1", second.IdentityID)
	assert.Equal(t, consts.KindExpert, second.IdentityKind)
	assert.False(t, second.LastSeen.Before(first.LastSeen))

	var expert model.Expert
	require.NoError(t, db.First(&expert, "id = ?", "e1").Error)
	assert.False(t, expert.IsOnline)
	require.NotNil(t, expert.LastSeen)

	assert.Equal(t, "false", mr.HGet("presence:Expert:e1", "isOnline"))
	assert.True(t, mr.TTL("presence:Expert:e1") > 0)
}

func TestPresence_StoreFailureStillBroadcasts(t *testing.T) {
	svc, resolver, bc, _, _ := setupPresence(t)

	ident, err := resolver.Parse("ghost", consts.KindUser)
	require.NoError(t, err)
	require.NoError(t, svc.Online(context.Background(), ident, "conn-1"))

	assert.Len(t, bc.byEvent(consts.EventUserStatusChanged), 1)
}

func TestPresence_GetPresenceCacheAndFallback(t *testing.T) {
	svc, resolver, _, db, mr := setupPresence(t)
	ctx := context.Background()

	// 缓存未命中时回源数据库并回填
	seen := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", "u1").
		Updates(map[string]interface{}{"is_online": false, "last_seen": seen}).Error)

	p, err := svc.GetPresence(ctx, "u1", consts.KindUser)
	require.NoError(t, err)
	assert.False(t, p.IsOnline)
	require.NotNil(t, p.LastSeen)
	assert.Equal(t, seen.UnixMilli(), p.LastSeen.UnixMilli())
	assert.True(t, mr.Exists("presence:User:u1"))

	ident, err := resolver.Parse("u1", consts.KindUser)
	require.NoError(t, err)
	require.NoError(t, svc.Online(ctx, ident, "c"))

	p, err = svc.GetPresence(ctx, "u1", consts.KindUser)
	require.NoError(t, err)
	assert.True(t, p.IsOnline)

	_, err = svc.GetPresence(ctx, "nobody", consts.KindUser)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
	_, err = svc.GetPresence(ctx, "u1", "Robot")
	assert.ErrorIs(t, err, ErrIdentityKind)
}
