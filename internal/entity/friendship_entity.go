package entity

import "time"

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "PENDING"
	FriendshipStatusAccepted FriendshipStatus = "ACCEPTED"
	FriendshipStatusRejected FriendshipStatus = "REJECTED"
)

// Friendship is one edge of the social graph. Presence broadcast only
// reads accepted edges; the request/accept flow itself is handled by an
// external collaborator.
type Friendship struct {
	Id        int64            `bson:"_id" json:"id,string"`
	UserId    int64            `bson:"userId" json:"userId,string"`
	FriendId  int64            `bson:"friendId" json:"friendId,string"`
	Status    FriendshipStatus `bson:"status" json:"status"`
	CreatedAt time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time        `bson:"updatedAt" json:"updatedAt"`
}
