package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telechat/internal/entity"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrDuplicateClientMsgId reports a collision on the idempotency
	// key's unique index.
	ErrDuplicateClientMsgId = errors.New("duplicate client message id")
)

type MessageRepository interface {
	// Create persists a fully-populated message. The caller assigns the
	// id and timestamps before the call.
	Create(ctx context.Context, message entity.Message) error
	Get(ctx context.Context, messageId int64) (entity.Message, error)
	ExistsByClientMsgId(ctx context.Context, clientMsgId string) (bool, error)
	// ListBySession pages through a session's history, newest first.
	ListBySession(ctx context.Context, sessionId int64, page, size int) ([]entity.Message, error)
	// AdvanceStatus moves a message's status forward. Regressions are
	// refused by the conditional filter, not an error.
	AdvanceStatus(ctx context.Context, messageId int64, status entity.MessageStatus) error
	// MarkSessionRead flips every message in the session addressed to
	// ownerId to READ.
	MarkSessionRead(ctx context.Context, sessionId, ownerId int64) error
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	db *mongo.Database
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) collection() *mongo.Collection {
	return r.db.Collection("messages")
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// sparse: only messages that carry an idempotency key
			Keys:    bson.D{{Key: "clientMsgId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "receiverId", Value: 1}},
		},
	})
	return err
}

func (r *messageRepository) Create(ctx context.Context, message entity.Message) error {
	_, err := r.collection().InsertOne(ctx, message)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateClientMsgId
		}
		return err
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, messageId int64) (entity.Message, error) {
	var message entity.Message
	err := r.collection().FindOne(ctx, bson.M{"_id": messageId}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) ExistsByClientMsgId(ctx context.Context, clientMsgId string) (bool, error) {
	count, err := r.collection().CountDocuments(ctx, bson.M{"clientMsgId": clientMsgId})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *messageRepository) ListBySession(ctx context.Context, sessionId int64, page, size int) ([]entity.Message, error) {
	if size <= 0 {
		size = 50
	}
	if page < 0 {
		page = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(page * size)).
		SetLimit(int64(size))

	cursor, err := r.collection().Find(ctx, bson.M{"sessionId": sessionId}, opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) AdvanceStatus(ctx context.Context, messageId int64, status entity.MessageStatus) error {
	filter := bson.M{
		"_id":    messageId,
		"status": bson.M{"$in": statusesBelow(status)},
	}
	update := bson.M{"$set": bson.M{"status": status}}
	_, err := r.collection().UpdateOne(ctx, filter, update)
	return err
}

func (r *messageRepository) MarkSessionRead(ctx context.Context, sessionId, ownerId int64) error {
	filter := bson.M{
		"sessionId":  sessionId,
		"receiverId": ownerId,
		"status":     bson.M{"$ne": entity.MessageStatusRead},
	}
	update := bson.M{"$set": bson.M{"status": entity.MessageStatusRead}}
	_, err := r.collection().UpdateMany(ctx, filter, update)
	return err
}

// statusesBelow lists every status strictly before the target, so a
// conditional update can refuse regressions.
func statusesBelow(target entity.MessageStatus) []entity.MessageStatus {
	all := []entity.MessageStatus{
		entity.MessageStatusSending,
		entity.MessageStatusSent,
		entity.MessageStatusDelivered,
		entity.MessageStatusRead,
	}
	rank := entity.StatusRank(target)
	below := make([]entity.MessageStatus, 0, len(all))
	for _, s := range all {
		if entity.StatusRank(s) < rank {
			below = append(below, s)
		}
	}
	return below
}
