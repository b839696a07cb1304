package mongo

import (
	"context"
	"errors"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessageByID(ctx context.Context, id string) (*Message, error)
	GetHistory(ctx context.Context, convID string, before string, pageSize int) ([]*Message, error)
	MarkRead(ctx context.Context, convID string, readerID string) (int64, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

// SaveMessage 写入消息并回填 ID
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetMessageByID 不存在或 ID 非法时返回 nil, nil
func (s *messageRepoImpl) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var msg Message
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetHistory 历史消息查询
// before 为当前页面最旧一条消息的 ID，第一页传空；返回结果按时间正序
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID string, before string, pageSize int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}
	if before != "" {
		oid, err := primitive.ObjectIDFromHex(before)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$lt": oid}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(pageSize))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0, pageSize)
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// MarkRead 将 readerID 并入对方所发消息的 read_by，重复调用不会产生重复项
func (s *messageRepoImpl) MarkRead(ctx context.Context, convID string, readerID string) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"sender":          bson.M{"$ne": readerID},
		"read_by":         bson.M{"$ne": readerID},
	}
	update := bson.M{"$addToSet": bson.M{"read_by": readerID}}

	res, err := s.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
