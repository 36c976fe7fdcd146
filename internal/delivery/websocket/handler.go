package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telechat/infrastructure/ws"
	"telechat/internal/entity"
	"telechat/internal/metrics"
	"telechat/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketHandler struct {
	hub        *ws.Hub
	authUc     usecase.AuthUsecase
	deliveryUc usecase.DeliveryUsecase
	presenceUc usecase.PresenceUsecase
	log        *zap.Logger
}

func NewWebsocketHandler(
	hub *ws.Hub,
	authUc usecase.AuthUsecase,
	deliveryUc usecase.DeliveryUsecase,
	presenceUc usecase.PresenceUsecase,
	log *zap.Logger,
) *WebsocketHandler {
	return &WebsocketHandler{
		hub:        hub,
		authUc:     authUc,
		deliveryUc: deliveryUc,
		presenceUc: presenceUc,
		log:        log,
	}
}

// HandleWebSocket authenticates the connect via the token query
// parameter, since browsers cannot set headers on a websocket upgrade.
func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authUc.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(claims.UserId, h.hub, conn, h.log)
	h.hub.RegisterClient(client)
	metrics.OnlineConns.Inc()

	// the request context dies with the upgrade; lifecycle work runs on
	// a background context
	ctx := context.Background()
	if err := h.presenceUc.MarkOnline(ctx, claims.UserId); err != nil {
		h.log.Warn("mark online failed", zap.Int64("userId", claims.UserId), zap.Error(err))
	}

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		h.handleFrame(ctx, client, data)
	})
	metrics.OnlineConns.Dec()
}

// HandleDisconnect is installed as the hub's unregister callback.
func (h *WebsocketHandler) HandleDisconnect(client *ws.UserClient) {
	ctx := context.Background()
	if err := h.presenceUc.MarkOffline(ctx, client.UserId); err != nil {
		h.log.Warn("mark offline failed", zap.Int64("userId", client.UserId), zap.Error(err))
	}
}

func (h *WebsocketHandler) handleFrame(ctx context.Context, client *ws.UserClient, data []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.log.Warn("malformed frame", zap.Int64("userId", client.UserId), zap.Error(err))
		return
	}

	switch frame.Type {
	case FrameChatSend:
		h.handleSend(ctx, client, frame.Data)
	case FrameChatRead:
		h.handleRead(ctx, client, frame.Data)
	case FrameChatDelivered:
		h.handleDelivered(ctx, client, frame.Data)
	case FrameChatHeartbeat:
		if err := h.presenceUc.Heartbeat(ctx, client.UserId); err != nil {
			h.log.Warn("heartbeat failed", zap.Int64("userId", client.UserId), zap.Error(err))
		}
	default:
		h.log.Warn("unknown frame type",
			zap.Int64("userId", client.UserId),
			zap.String("type", frame.Type))
	}
}

func (h *WebsocketHandler) handleSend(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var payload SendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.log.Warn("malformed send payload", zap.Int64("userId", client.UserId), zap.Error(err))
		return
	}
	if payload.Type == "" {
		payload.Type = entity.MessageTypeText
	}

	_, err := h.deliveryUc.Send(ctx, usecase.SendRequest{
		SenderId:    client.UserId,
		ReceiverId:  payload.ReceiverId,
		Content:     payload.Content,
		Type:        payload.Type,
		ClientMsgId: payload.ClientMsgId,
		MediaUrl:    payload.MediaUrl,
		FileName:    payload.FileName,
		FileSize:    payload.FileSize,
	})
	if err != nil {
		h.sendError(client, err)
	}
}

func (h *WebsocketHandler) handleRead(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var payload ReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.log.Warn("malformed read payload", zap.Int64("userId", client.UserId), zap.Error(err))
		return
	}

	if err := h.deliveryUc.MarkRead(ctx, client.UserId, payload.PeerId); err != nil {
		h.sendError(client, err)
	}
}

func (h *WebsocketHandler) handleDelivered(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var payload DeliveredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.log.Warn("malformed delivered payload", zap.Int64("userId", client.UserId), zap.Error(err))
		return
	}

	// receipts are best-effort; a failure never bounces back to the client
	if err := h.deliveryUc.MarkDelivered(ctx, client.UserId, payload.MessageId); err != nil {
		h.log.Warn("mark delivered failed",
			zap.Int64("userId", client.UserId),
			zap.Int64("messageId", payload.MessageId),
			zap.Error(err))
	}
}

func (h *WebsocketHandler) sendError(client *ws.UserClient, err error) {
	message := "internal error"
	switch {
	case errors.Is(err, usecase.ErrEmptyContent),
		errors.Is(err, usecase.ErrInvalidMessageType),
		errors.Is(err, usecase.ErrReceiverNotFound):
		message = err.Error()
	default:
		h.log.Error("frame handling failed", zap.Int64("userId", client.UserId), zap.Error(err))
	}

	if payload, encodeErr := entity.EncodeFrame("error", ErrorPayload{Message: message}); encodeErr == nil {
		h.hub.Send(client.UserId, payload)
	}
}
