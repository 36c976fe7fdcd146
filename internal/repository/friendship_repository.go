package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"telechat/internal/entity"
)

// FriendshipRepository is the social-graph collaborator as seen by the
// presence tracker: the current accepted friend set of a user. The
// request/accept lifecycle lives outside this core.
type FriendshipRepository interface {
	FriendsOf(ctx context.Context, userId int64) ([]int64, error)
}

type friendshipRepository struct {
	db *mongo.Database
}

func NewFriendshipRepository(db *mongo.Database) FriendshipRepository {
	return &friendshipRepository{db: db}
}

// FriendsOf returns accepted friendships in either direction.
func (r *friendshipRepository) FriendsOf(ctx context.Context, userId int64) ([]int64, error) {
	filter := bson.M{
		"status": entity.FriendshipStatusAccepted,
		"$or": bson.A{
			bson.M{"userId": userId},
			bson.M{"friendId": userId},
		},
	}
	cursor, err := r.db.Collection("friendships").Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var edges []entity.Friendship
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, err
	}

	friends := make([]int64, 0, len(edges))
	for _, edge := range edges {
		if edge.UserId == userId {
			friends = append(friends, edge.FriendId)
		} else {
			friends = append(friends, edge.UserId)
		}
	}
	return friends, nil
}
