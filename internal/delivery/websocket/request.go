package websocket

import (
	"encoding/json"

	"telechat/internal/entity"
)

// Inbound frame types a client may send over an open connection.
const (
	FrameChatSend      = "chat.send"
	FrameChatRead      = "chat.read"
	FrameChatDelivered = "chat.delivered"
	FrameChatHeartbeat = "chat.heartbeat"
)

// InboundFrame is the client-to-server envelope, mirroring the
// server-to-client one.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SendPayload struct {
	ReceiverId  int64              `json:"receiverId,string"`
	Content     string             `json:"content"`
	Type        entity.MessageType `json:"type"`
	ClientMsgId string             `json:"clientMsgId"`
	MediaUrl    string             `json:"mediaUrl"`
	FileName    string             `json:"fileName"`
	FileSize    string             `json:"fileSize"`
}

type ReadPayload struct {
	PeerId int64 `json:"peerId,string"`
}

type DeliveredPayload struct {
	MessageId int64 `json:"messageId,string"`
}
