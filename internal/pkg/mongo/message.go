package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message 聊天消息明细
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID string             `bson:"conversation_id"`
	Sender         string             `bson:"sender"`
	SenderModel    string             `bson:"sender_model"` // User | Expert
	Content        string             `bson:"content"`      // 文本或媒体 URL
	ContentType    string             `bson:"content_type"` // text | image | audio | pdf
	ReplyTo        string             `bson:"reply_to,omitempty"`
	ReadBy         []string           `bson:"read_by"`
	CreatedAt      time.Time          `bson:"created_at"`
}
