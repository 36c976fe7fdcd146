package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"telechat/internal/entity"
	"telechat/internal/repository"
	"telechat/internal/usecase"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type HttpHandler struct {
	sessionUc  usecase.SessionUsecase
	deliveryUc usecase.DeliveryUsecase
	unreadUc   usecase.UnreadUsecase
	presenceUc usecase.PresenceUsecase
	userRepo   repository.UserRepository
	log        *zap.Logger
}

func NewHttpHandler(
	sessionUc usecase.SessionUsecase,
	deliveryUc usecase.DeliveryUsecase,
	unreadUc usecase.UnreadUsecase,
	presenceUc usecase.PresenceUsecase,
	userRepo repository.UserRepository,
	log *zap.Logger,
) *HttpHandler {
	return &HttpHandler{
		sessionUc:  sessionUc,
		deliveryUc: deliveryUc,
		unreadUc:   unreadUc,
		presenceUc: presenceUc,
		userRepo:   userRepo,
		log:        log,
	}
}

// GET /chats
func (h *HttpHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	views, err := h.sessionUc.List(r.Context(), claims.UserId)
	if err != nil {
		h.log.Error("list chats failed", zap.Int64("userId", claims.UserId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: views})
}

// GET /chats/{peerId}/messages?page=&size=
func (h *HttpHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}
	peerId, err := pathId(r, "peerId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid peer id"})
		return
	}

	page, size := pagination(r)
	messages, err := h.deliveryUc.History(r.Context(), claims.UserId, peerId, page, size)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			writeJSON(w, http.StatusOK, Response{Message: "success", Data: []entity.Message{}})
			return
		}
		h.log.Error("get messages failed", zap.Int64("peerId", peerId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: messages})
}

// POST /messages
func (h *HttpHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	var req struct {
		ReceiverId  int64              `json:"receiverId,string"`
		Content     string             `json:"content"`
		Type        entity.MessageType `json:"type"`
		ClientMsgId string             `json:"clientMsgId"`
		MediaUrl    string             `json:"mediaUrl"`
		FileName    string             `json:"fileName"`
		FileSize    string             `json:"fileSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if req.Type == "" {
		req.Type = entity.MessageTypeText
	}

	message, err := h.deliveryUc.Send(r.Context(), usecase.SendRequest{
		SenderId:    claims.UserId,
		ReceiverId:  req.ReceiverId,
		Content:     req.Content,
		Type:        req.Type,
		ClientMsgId: req.ClientMsgId,
		MediaUrl:    req.MediaUrl,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal server error"
		switch {
		case errors.Is(err, usecase.ErrEmptyContent):
			status, message = http.StatusBadRequest, "message content is empty"
		case errors.Is(err, usecase.ErrInvalidMessageType):
			status, message = http.StatusBadRequest, "invalid message type"
		case errors.Is(err, usecase.ErrReceiverNotFound):
			status, message = http.StatusNotFound, "receiver not found"
		default:
			h.log.Error("send failed", zap.Int64("senderId", claims.UserId), zap.Error(err))
		}
		writeJSON(w, status, Response{Message: message})
		return
	}
	if message == nil {
		// recognized retransmit
		writeJSON(w, http.StatusOK, Response{Message: "duplicate ignored"})
		return
	}

	writeJSON(w, http.StatusCreated, Response{Message: "success", Data: message})
}

// POST /chats/{peerId}/read
func (h *HttpHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}
	peerId, err := pathId(r, "peerId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid peer id"})
		return
	}

	if err := h.deliveryUc.MarkRead(r.Context(), claims.UserId, peerId); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, Response{Message: "chat not found"})
			return
		}
		h.log.Error("mark read failed", zap.Int64("peerId", peerId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// GET /unread/total
func (h *HttpHandler) UnreadTotal(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	total, err := h.unreadUc.TotalFor(r.Context(), claims.UserId)
	if err != nil {
		h.log.Error("unread total failed", zap.Int64("userId", claims.UserId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int64{"total": total}})
}

// GET /users/{id}
func (h *HttpHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userId, err := pathId(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid user id"})
		return
	}

	user, err := h.userRepo.Get(r.Context(), userId)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, Response{Message: "user not found"})
			return
		}
		h.log.Error("get user failed", zap.Int64("userId", userId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}
	user.Password = ""

	// overlay the live presence flag; the durable mirror may lag
	if online, err := h.presenceUc.IsOnline(r.Context(), userId); err == nil {
		if online {
			user.Status = entity.UserStatusOnline
		} else {
			user.Status = entity.UserStatusOffline
		}
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: user})
}

// POST /presence/heartbeat
func (h *HttpHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	if err := h.presenceUc.Heartbeat(r.Context(), claims.UserId); err != nil {
		h.log.Error("heartbeat failed", zap.Int64("userId", claims.UserId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

func pathId(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func pagination(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
