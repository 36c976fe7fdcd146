package entity

import "time"

// Session is one user's view of a conversation with a peer. Every
// private conversation between A and B is stored as two rows, one owned
// by each side, created together on first contact.
type Session struct {
	Id              int64     `bson:"_id" json:"id,string"`
	UserId          int64     `bson:"userId" json:"userId,string"`
	PeerId          int64     `bson:"peerId" json:"peerId,string"`
	IsGroup         bool      `bson:"isGroup" json:"isGroup"`
	GroupName       string    `bson:"groupName,omitempty" json:"groupName,omitempty"`
	LastMessage     string    `bson:"lastMessage" json:"lastMessage"`
	LastMessageTime time.Time `bson:"lastMessageTime" json:"lastMessageTime"`
	// UnreadCount is the durable backup of the ephemeral counter.
	// Real-time reads come from the cache, not this field.
	UnreadCount int64     `bson:"unreadCount" json:"-"`
	IsPinned    bool      `bson:"isPinned" json:"isPinned"`
	IsMuted     bool      `bson:"isMuted" json:"isMuted"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SessionView is the conversation-list DTO: a Session merged with the
// live unread count.
type SessionView struct {
	Session
	Unread int64 `json:"unreadCount"`
}
