package middleware

import (
	"Solace/internal/api/config"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/redis"
	"Solace/internal/pkg/security"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuth(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.Init(config.JWTConfig{Secret: "test-secret", Issuer: "Solace"})

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	prev := redis.Rdb
	redis.Rdb = client
	t.Cleanup(func() {
		redis.Rdb = prev
		_ = client.Close()
	})

	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   c.GetString(consts.CtxIdentityID),
			"kind": c.GetString(consts.CtxIdentityKind),
		})
	})
	return r, mr
}

func call(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r, mr := setupAuth(t)

	token, err := security.GenerateToken("e1", consts.KindExpert)
	require.NoError(t, err)

	w := call(r, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "e1", body["id"])
	assert.Equal(t, consts.KindExpert, body["kind"])

	// 未携带与已注销的 Token 均被拒绝
	var res struct{ Code int }
	require.NoError(t, json.Unmarshal(call(r, "").Body.Bytes(), &res))
	assert.Equal(t, 401, res.Code)

	sig, err := security.ExtractSignature(token)
	require.NoError(t, err)
	require.NoError(t, mr.Set(consts.TokenBlacklistKey+sig, "1"))
	require.NoError(t, json.Unmarshal(call(r, token).Body.Bytes(), &res))
	assert.Equal(t, 401, res.Code)
}
