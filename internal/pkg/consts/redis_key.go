package consts

const (
	// PresenceKey presence:<kind>:<id> 在线状态缓存
	PresenceKey = "presence:"
	// SocketBroadcastChannel 多实例房间广播总线
	SocketBroadcastChannel = "socket:broadcast"
	// TokenBlacklistKey 已注销 Token 签名
	TokenBlacklistKey = "auth:blacklist:"
)
