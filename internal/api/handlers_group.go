package api

import "Solace/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	SocketHandler   *handler.SocketHandler
	IMHandler       *handler.IMHandler
	PresenceHandler *handler.PresenceHandler
	MediaHandler    *handler.MediaHandler
}
