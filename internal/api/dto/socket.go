package dto

import "time"

// UserStatusDTO userStatusChanged 广播
type UserStatusDTO struct {
	IdentityID   string    `json:"identityId"`
	IdentityKind string    `json:"identityKind"`
	IsOnline     bool      `json:"isOnline"`
	LastSeen     time.Time `json:"lastSeen"`
}

// PresenceDTO 在线状态查询结果
type PresenceDTO struct {
	IdentityID   string     `json:"identityId"`
	IdentityKind string     `json:"identityKind"`
	IsOnline     bool       `json:"isOnline"`
	LastSeen     *time.Time `json:"lastSeen"`
}

// RoomRef 只携带 roomId 的信令载荷
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required"`
}

// PeerDTO user-connected / user-left
type PeerDTO struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

// CallFullDTO 通话已满
type CallFullDTO struct {
	RoomID   string `json:"roomId"`
	MaxPeers int    `json:"maxPeers"`
}

// WbDrawReq 归一化坐标的线段
type WbDrawReq struct {
	RoomID string  `json:"roomId" validate:"required"`
	X0     float64 `json:"x0" validate:"gte=0,lte=1"`
	Y0     float64 `json:"y0" validate:"gte=0,lte=1"`
	X1     float64 `json:"x1" validate:"gte=0,lte=1"`
	Y1     float64 `json:"y1" validate:"gte=0,lte=1"`
	Color  string  `json:"color"`
	Width  float64 `json:"width" validate:"gt=0,lte=200"`
}

// WbRequestStateDTO 转发给其他成员的状态请求
type WbRequestStateDTO struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId"`
}

// WbSendStateReq 应答方发送的快照
type WbSendStateReq struct {
	RoomID      string `json:"roomId" validate:"required"`
	Image       string `json:"image" validate:"required"`
	RequesterID string `json:"requesterId" validate:"required"`
}

// WbUpdateStateDTO 定向下发给请求方
type WbUpdateStateDTO struct {
	RoomID string `json:"roomId"`
	Image  string `json:"image"`
}

// SocketStatsDTO 本节点连接统计
type SocketStatsDTO struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Polling     int `json:"polling"`
	Calls       int `json:"calls"`
	Whiteboards int `json:"whiteboards"`
}
