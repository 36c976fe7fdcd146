package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telechat/internal/entity"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Get(ctx context.Context, userId int64) (entity.User, error)
	GetByName(ctx context.Context, name string) (entity.User, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, user entity.User) error
	// UpdateStatus mirrors the ephemeral presence flag onto the durable
	// row. Best effort, used for recovery and cold reads only.
	UpdateStatus(ctx context.Context, userId int64, status entity.UserStatus) error
	Index(ctx context.Context, userIds []int64) ([]entity.User, error)
	EnsureIndexes(ctx context.Context) error
}

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) collection() *mongo.Collection {
	return r.db.Collection("users")
}

func (r *userRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *userRepository) Get(ctx context.Context, userId int64) (entity.User, error) {
	var user entity.User
	err := r.collection().FindOne(ctx, bson.M{"_id": userId}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByName(ctx context.Context, name string) (entity.User, error) {
	var user entity.User
	err := r.collection().FindOne(ctx, bson.M{"name": name}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}
	return user, nil
}

func (r *userRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	count, err := r.collection().CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user entity.User) error {
	_, err := r.collection().InsertOne(ctx, user)
	return err
}

func (r *userRepository) UpdateStatus(ctx context.Context, userId int64, status entity.UserStatus) error {
	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now(),
	}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": userId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Index(ctx context.Context, userIds []int64) ([]entity.User, error) {
	if len(userIds) == 0 {
		return nil, nil
	}
	cursor, err := r.collection().Find(ctx, bson.M{"_id": bson.M{"$in": userIds}})
	if err != nil {
		return nil, err
	}

	var users []entity.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
