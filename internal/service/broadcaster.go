package service

// Broadcaster 房间与广播能力，由实时连接服务实现
type Broadcaster interface {
	Join(connID, room string) error
	Leave(connID, room string) error
	InRoom(connID, room string) bool
	RoomSize(room string) int
	EmitTo(rooms []string, event string, payload any, exceptConnID string) error
	EmitAll(event string, payload any, exceptConnID string) error
	EmitToConn(connID, event string, payload any) error
}
