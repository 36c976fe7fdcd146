package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"telechat/infrastructure/broker"
	"telechat/infrastructure/ws"
	"telechat/internal/entity"
	"telechat/internal/metrics"
	"telechat/internal/repository"
	"telechat/pkg/snowflake"
)

var (
	ErrEmptyContent       = errors.New("message content is empty")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrReceiverNotFound   = errors.New("receiver not found")
)

type SendRequest struct {
	SenderId   int64
	ReceiverId int64
	Content    string
	Type       entity.MessageType
	// ClientMsgId is the client-supplied idempotency key; optional.
	ClientMsgId string
	MediaUrl    string
	FileName    string
	FileSize    string
}

// DeliveryUsecase orchestrates a send: dedup, session resolution,
// persistence, counter increment, fan-out and sender ack.
type DeliveryUsecase interface {
	// Send persists and fans out one message. A recognized retransmit
	// returns (nil, nil): no new message, no side effects.
	Send(ctx context.Context, req SendRequest) (*entity.Message, error)
	// History pages the conversation between owner and peer, newest
	// first.
	History(ctx context.Context, ownerId, peerId int64, page, size int) ([]entity.Message, error)
	// MarkDelivered advances one message to DELIVERED when its
	// recipient's client confirms receipt. Regressions are refused by
	// the conditional update.
	MarkDelivered(ctx context.Context, userId, messageId int64) error
	// MarkRead is the read-receipt path: clears the ephemeral counter
	// and synchronizes the durable state.
	MarkRead(ctx context.Context, ownerId, peerId int64) error
}

type deliveryUsecase struct {
	gen         *snowflake.Generator
	sessions    SessionUsecase
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	unread      UnreadUsecase
	broker      broker.Broker
	registry    ws.Registry
	log         *zap.Logger
}

func NewDeliveryUsecase(
	gen *snowflake.Generator,
	sessions SessionUsecase,
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	unread UnreadUsecase,
	b broker.Broker,
	registry ws.Registry,
	log *zap.Logger,
) DeliveryUsecase {
	return &deliveryUsecase{
		gen:         gen,
		sessions:    sessions,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		unread:      unread,
		broker:      b,
		registry:    registry,
		log:         log,
	}
}

func (u *deliveryUsecase) Send(ctx context.Context, req SendRequest) (*entity.Message, error) {
	if req.Content == "" {
		return nil, ErrEmptyContent
	}
	if !entity.ValidMessageType(req.Type) {
		return nil, ErrInvalidMessageType
	}
	if _, err := u.userRepo.Get(ctx, req.ReceiverId); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}

	// Dedup check. Not atomic with the insert below; a pathological
	// concurrent retransmit can slip past it, which the unique index
	// on clientMsgId then catches.
	if req.ClientMsgId != "" {
		exists, err := u.messageRepo.ExistsByClientMsgId(ctx, req.ClientMsgId)
		if err != nil {
			return nil, err
		}
		if exists {
			metrics.MessagesDeduped.Inc()
			u.log.Debug("duplicate send dropped", zap.String("clientMsgId", req.ClientMsgId))
			return nil, nil
		}
	}

	session, err := u.sessions.Resolve(ctx, req.SenderId, req.ReceiverId)
	if err != nil {
		return nil, err
	}

	id, err := u.gen.Next()
	if err != nil {
		if errors.Is(err, snowflake.ErrClockMovedBack) {
			// id collision risk, refuse to continue
			u.log.Fatal("id generator clock anomaly", zap.Error(err))
		}
		return nil, err
	}

	message := entity.Message{
		Id:          id,
		SenderId:    req.SenderId,
		ReceiverId:  req.ReceiverId,
		SessionId:   session.Id,
		Content:     req.Content,
		Type:        req.Type,
		Status:      entity.MessageStatusSent,
		MediaUrl:    req.MediaUrl,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ClientMsgId: req.ClientMsgId,
		CreatedAt:   time.Now(),
	}

	if err := u.messageRepo.Create(ctx, message); err != nil {
		if errors.Is(err, repository.ErrDuplicateClientMsgId) {
			metrics.MessagesDeduped.Inc()
			return nil, nil
		}
		return nil, err
	}
	metrics.MessagesSent.Inc()

	// The message is durable from here on. Everything below is
	// best-effort: failures are logged, never unwound, never surfaced
	// as a send failure.
	u.deliver(ctx, session, message)

	return &message, nil
}

func (u *deliveryUsecase) deliver(ctx context.Context, session entity.Session, message entity.Message) {
	now := message.CreatedAt

	if err := u.sessionRepo.RecordLastMessage(ctx, session.Id, message.Content, now); err != nil {
		u.log.Warn("session preview update failed", zap.Int64("sessionId", session.Id), zap.Error(err))
	}
	if peerSession, err := u.sessions.Find(ctx, message.ReceiverId, message.SenderId); err == nil {
		if err := u.sessionRepo.RecordLastMessage(ctx, peerSession.Id, message.Content, now); err != nil {
			u.log.Warn("peer session preview update failed", zap.Int64("sessionId", peerSession.Id), zap.Error(err))
		}
	} else {
		u.log.Warn("peer session lookup failed", zap.Error(err))
	}

	if err := u.unread.Increment(ctx, message.ReceiverId, message.SenderId); err != nil {
		u.log.Warn("unread increment failed",
			zap.Int64("receiverId", message.ReceiverId),
			zap.Error(err))
	}

	payload, err := entity.EncodeFrame(entity.FrameMessage, message)
	if err != nil {
		u.log.Error("message frame encode failed", zap.Error(err))
		return
	}
	if err := u.broker.Publish(ctx, message.ReceiverId, payload); err != nil {
		// the pub/sub layer retries via its own reconnect path; the
		// persisted message stands either way
		u.log.Warn("broker publish failed",
			zap.Int64("receiverId", message.ReceiverId),
			zap.Error(err))
	}

	ack, err := entity.EncodeFrame(entity.FrameAck, message)
	if err != nil {
		u.log.Error("ack frame encode failed", zap.Error(err))
		return
	}
	// sender confirmation only ever goes to a local connection
	u.registry.Send(message.SenderId, ack)
}

func (u *deliveryUsecase) History(ctx context.Context, ownerId, peerId int64, page, size int) ([]entity.Message, error) {
	session, err := u.sessions.Find(ctx, ownerId, peerId)
	if err != nil {
		return nil, err
	}
	return u.messageRepo.ListBySession(ctx, session.Id, page, size)
}

func (u *deliveryUsecase) MarkDelivered(ctx context.Context, userId, messageId int64) error {
	message, err := u.messageRepo.Get(ctx, messageId)
	if err != nil {
		return err
	}
	// only the recipient may confirm receipt
	if message.ReceiverId != userId {
		return repository.ErrMessageNotFound
	}
	return u.messageRepo.AdvanceStatus(ctx, messageId, entity.MessageStatusDelivered)
}

func (u *deliveryUsecase) MarkRead(ctx context.Context, ownerId, peerId int64) error {
	return u.unread.Clear(ctx, ownerId, peerId)
}
