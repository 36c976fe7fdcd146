package repository

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telechat/internal/entity"
)

var ErrSessionNotFound = errors.New("session not found")

// previewLimit bounds the stored last-message preview, in runes.
const previewLimit = 50

type SessionRepository interface {
	// Upsert inserts the session if no row exists for its (owner, peer)
	// key and returns the stored row either way. Concurrent first
	// contact converges on one row per direction.
	Upsert(ctx context.Context, session entity.Session) (entity.Session, error)
	FindByOwnerAndPeer(ctx context.Context, ownerId, peerId int64) (entity.Session, error)
	FindById(ctx context.Context, sessionId int64) (entity.Session, error)
	List(ctx context.Context, ownerId int64) ([]entity.Session, error)
	RecordLastMessage(ctx context.Context, sessionId int64, preview string, at time.Time) error
	SetUnreadCount(ctx context.Context, sessionId int64, count int64) error
	EnsureIndexes(ctx context.Context) error
}

type sessionRepository struct {
	db *mongo.Database
}

func NewSessionRepository(db *mongo.Database) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) collection() *mongo.Collection {
	return r.db.Collection("chat_sessions")
}

// EnsureIndexes installs the unique (userId, peerId) constraint the
// resolve race depends on, plus the list-ordering index.
func (r *sessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "peerId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
		},
	})
	return err
}

func (r *sessionRepository) Upsert(ctx context.Context, session entity.Session) (entity.Session, error) {
	filter := bson.M{"userId": session.UserId, "peerId": session.PeerId}
	update := bson.M{"$setOnInsert": session}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored entity.Session
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil {
		// a concurrent upsert on the same key can race the unique
		// index; the row exists now, fetch it
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByOwnerAndPeer(ctx, session.UserId, session.PeerId)
		}
		return entity.Session{}, err
	}
	return stored, nil
}

func (r *sessionRepository) FindByOwnerAndPeer(ctx context.Context, ownerId, peerId int64) (entity.Session, error) {
	filter := bson.M{"userId": ownerId, "peerId": peerId}

	var session entity.Session
	err := r.collection().FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.Session{}, ErrSessionNotFound
		}
		return entity.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) FindById(ctx context.Context, sessionId int64) (entity.Session, error) {
	var session entity.Session
	err := r.collection().FindOne(ctx, bson.M{"_id": sessionId}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.Session{}, ErrSessionNotFound
		}
		return entity.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) List(ctx context.Context, ownerId int64) ([]entity.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.collection().Find(ctx, bson.M{"userId": ownerId}, opts)
	if err != nil {
		return nil, err
	}

	var sessions []entity.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) RecordLastMessage(ctx context.Context, sessionId int64, preview string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"lastMessage":     truncatePreview(preview),
		"lastMessageTime": at,
		"updatedAt":       at,
	}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": sessionId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) SetUnreadCount(ctx context.Context, sessionId int64, count int64) error {
	update := bson.M{"$set": bson.M{"unreadCount": count}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": sessionId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// truncatePreview bounds the preview to previewLimit runes, marking the
// cut with an ellipsis. Counting runes keeps multibyte content intact.
func truncatePreview(s string) string {
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLimit]) + "..."
}
