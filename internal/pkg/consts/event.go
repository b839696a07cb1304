package consts

// 客户端 -> 服务端
const (
	EventJoinVideo      = "join-video"
	EventClientReady    = "client-ready"
	EventOffer          = "offer"
	EventAnswer         = "answer"
	EventIceCandidate   = "ice-candidate"
	EventWbDraw         = "wb-draw"
	EventWbClear        = "wb-clear"
	EventWbRequestState = "wb-request-state"
	EventWbSendState    = "wb-send-state"
	EventJoinRoom       = "joinRoom"
	EventSendMessage    = "sendMessage"
	EventMarkAsRead     = "markAsRead"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
)

// 服务端 -> 客户端
const (
	EventUserStatusChanged   = "userStatusChanged"
	EventUserConnected       = "user-connected"
	EventUserLeft            = "user-left"
	EventCallFull            = "call-full"
	EventWbUpdateState       = "wb-update-state"
	EventReceiveMessage      = "receiveMessage"
	EventConversationUpdated = "conversationUpdated"
	EventMessagesRead        = "messagesRead"
)
