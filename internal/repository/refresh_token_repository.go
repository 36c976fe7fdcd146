package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"telechat/internal/entity"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository interface {
	Create(ctx context.Context, token entity.RefreshToken) error
	GetByToken(ctx context.Context, token string) (entity.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllByUserId(ctx context.Context, userId int64) error
	DeleteExpired(ctx context.Context) error
}

type refreshTokenRepository struct {
	db *mongo.Database
}

func NewRefreshTokenRepository(db *mongo.Database) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) collection() *mongo.Collection {
	return r.db.Collection("refresh_tokens")
}

func (r *refreshTokenRepository) Create(ctx context.Context, token entity.RefreshToken) error {
	token.Id = uuid.New().String()
	token.CreatedAt = time.Now()
	_, err := r.collection().InsertOne(ctx, token)
	return err
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, token string) (entity.RefreshToken, error) {
	var stored entity.RefreshToken
	err := r.collection().FindOne(ctx, bson.M{"token": token}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return entity.RefreshToken{}, err
	}
	return stored, nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	now := time.Now()
	update := bson.M{"$set": bson.M{"isRevoked": true, "revokedAt": now}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"token": token}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func (r *refreshTokenRepository) RevokeAllByUserId(ctx context.Context, userId int64) error {
	now := time.Now()
	update := bson.M{"$set": bson.M{"isRevoked": true, "revokedAt": now}}
	_, err := r.collection().UpdateMany(ctx, bson.M{"userId": userId, "isRevoked": false}, update)
	return err
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.collection().DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": time.Now()}})
	return err
}
