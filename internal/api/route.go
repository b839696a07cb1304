package api

import (
	"Solace/internal/api/middleware"
	"Solace/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup, socketPath string) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware(socketPath))
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r, socketPath)

	// 实时连接：WebSocket 升级与长轮询共用同一路径
	r.GET(socketPath, group.SocketHandler.Serve)
	r.POST(socketPath, group.SocketHandler.Serve)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		apiGroup.GET("/socket/stats", group.SocketHandler.Stats)
		apiGroup.GET("/presence/:kind/:id", group.PresenceHandler.GetPresence)

		imGroup := apiGroup.Group("/im")
		imGroup.Use(middleware.AuthMiddleware())
		{
			imGroup.GET("/history", group.IMHandler.GetChatHistory)
			imGroup.GET("/list", group.IMHandler.GetConversationList)
			imGroup.POST("/read", group.IMHandler.MarkAsRead)
		}

		mediaGroup := apiGroup.Group("/media")
		{
			mediaGroup.Use(middleware.AuthMiddleware())
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
		}
	}

	return r
}
