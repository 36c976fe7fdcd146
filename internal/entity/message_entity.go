package entity

import "time"

type MessageType string

const (
	MessageTypeText     MessageType = "TEXT"
	MessageTypeImage    MessageType = "IMAGE"
	MessageTypeFile     MessageType = "FILE"
	MessageTypeVoice    MessageType = "VOICE"
	MessageTypeVideo    MessageType = "VIDEO"
	MessageTypeLocation MessageType = "LOCATION"
)

// MessageStatus advances SENDING -> SENT -> DELIVERED -> READ and never
// regresses.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "SENDING"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
)

// StatusRank orders statuses for the no-regression rule.
func StatusRank(s MessageStatus) int {
	switch s {
	case MessageStatusSending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return -1
}

func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile,
		MessageTypeVoice, MessageTypeVideo, MessageTypeLocation:
		return true
	}
	return false
}

// Message is immutable once persisted, except for its status.
type Message struct {
	Id         int64         `bson:"_id" json:"id,string"`
	SenderId   int64         `bson:"senderId" json:"senderId,string"`
	ReceiverId int64         `bson:"receiverId" json:"receiverId,string"`
	SessionId  int64         `bson:"sessionId" json:"sessionId,string"`
	Content    string        `bson:"content" json:"content"`
	Type       MessageType   `bson:"type" json:"type"`
	Status     MessageStatus `bson:"status" json:"status"`
	MediaUrl   string        `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	FileName   string        `bson:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize   string        `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	// ClientMsgId is the client-supplied idempotency key. Retransmits
	// carrying the same key are dropped.
	ClientMsgId string    `bson:"clientMsgId,omitempty" json:"clientMsgId,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}
