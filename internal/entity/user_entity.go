package entity

import "time"

type UserStatus string

const (
	UserStatusOnline  UserStatus = "ONLINE"
	UserStatusOffline UserStatus = "OFFLINE"
)

// User is a plain data record. Sign-in concerns live in the auth layer,
// which wraps a User in a Principal.
type User struct {
	Id       int64  `bson:"_id" json:"id,string"`
	Name     string `bson:"name" json:"name"`
	Handle   string `bson:"handle" json:"handle"`
	Password string `bson:"password" json:"-"`
	Avatar   string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	// Status mirrors the ephemeral presence flag. Best effort, may lag.
	Status    UserStatus `bson:"status" json:"status"`
	Enabled   bool       `bson:"enabled" json:"-"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}
