package repository

import (
	"context"

	"campus_chat_service/pkg/wire"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository durable store for chat messages.
// A message is written exactly once before any fan-out happens; a page
// fetched afterwards always contains every message a client saw live.
type MessageRepository interface {
	// Insert store one accepted message
	Insert(ctx context.Context, msg *wire.Message) error
	// FindRecent return the newest limit messages of a room in ascending
	// created_at order, ties broken by id
	FindRecent(ctx context.Context, room string, limit int64) ([]wire.Message, error)
}

type chatMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoChatMessageRepository create a MessageRepository backed by mongo
func NewMongoChatMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		coll: db.Collection("chat_messages"),
	}
}

func (r *chatMessageRepository) Insert(ctx context.Context, msg *wire.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *chatMessageRepository) FindRecent(ctx context.Context, room string, limit int64) ([]wire.Message, error) {
	filter := bson.M{"room": room}

	// newest page first, then reversed so callers always get ascending order
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var page []wire.Message
	if err := cur.All(ctx, &page); err != nil {
		return nil, err
	}

	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}
