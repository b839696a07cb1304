package wire

import (
	"Solace/internal/api"
	"Solace/internal/api/config"
	"Solace/internal/api/handler"
	"Solace/internal/job"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/cron"
	"Solace/internal/pkg/kafka"
	"Solace/internal/pkg/minio"
	"Solace/internal/pkg/mongo"
	"Solace/internal/pkg/redis"
	"Solace/internal/pkg/socket"
	"Solace/internal/repository"
	"Solace/internal/service"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router    *gin.Engine
	DB        *gorm.DB
	Socket    *socket.Server
	CronMgr   *cron.Manager
	Publisher kafka.EventPublisher
}

func BuildApplication(db *gorm.DB, mongoDB *mongodriver.Database, cfg *config.Config) (*ApplicationContainer, error) {
	server, err := newSocketServer(cfg.Socket)
	if err != nil {
		return nil, err
	}

	publisher, err := kafka.NewEventPublisher(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepo(db)
	expertRepo := repository.NewExpertRepo(db)
	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)

	resolver := service.NewIdentityResolver(userRepo, expertRepo)
	presenceService := service.NewPresenceService(server, resolver)
	signalingService := service.NewSignalingService(server, cfg.Call.MaxPeers)
	whiteboardService := service.NewWhiteboardService(server, cfg.Whiteboard)
	chatService := service.NewChatService(server, conversationRepo, messageRepo, publisher, cfg.Chat)

	handlers := &api.HandlersGroup{
		SocketHandler: handler.NewSocketHandler(server, resolver, presenceService, signalingService,
			whiteboardService, chatService, cfg.Socket.RequireToken),
		IMHandler:       handler.NewIMHandler(chatService),
		PresenceHandler: handler.NewPresenceHandler(presenceService),
		MediaHandler:    handler.NewMediaHandler(minio.NewStorage()),
	}

	router := api.SetupRouter(handlers, cfg.Socket.Path)

	sweepJob := job.NewWhiteboardSweepJob(whiteboardService, time.Duration(cfg.Whiteboard.IdleTTL)*time.Second)
	cronMgr := cron.NewCronManager(cfg.Whiteboard.SweepSpec, sweepJob)

	return &ApplicationContainer{
		Router:    router,
		DB:        db,
		Socket:    server,
		CronMgr:   cronMgr,
		Publisher: publisher,
	}, nil
}

func newSocketServer(cfg config.SocketConfig) (*socket.Server, error) {
	opts := socket.Options{
		PingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		PingTimeout:    time.Duration(cfg.PingTimeout) * time.Second,
		PollTimeout:    time.Duration(cfg.PollTimeout) * time.Second,
		SendQueue:      cfg.SendQueue,
		MaxMessageSize: cfg.MaxMessageSize,
		AllowedOrigins: cfg.AllowedOrigins,
		AckMapper:      handler.AckMapper,
	}

	switch cfg.Adapter {
	case "", "memory":
	case "redis":
		client := redis.GetRdbClient()
		if client == nil {
			return nil, fmt.Errorf("socket adapter redis requires an initialized redis client")
		}
		opts.Adapter = socket.NewRedisAdapter(client, consts.SocketBroadcastChannel)
	default:
		return nil, fmt.Errorf("unknown socket adapter %q", cfg.Adapter)
	}
	return socket.NewServer(opts), nil
}
