package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telechat/infrastructure/cache"
	"telechat/internal/repository"
)

// unreadKey is the per-(owner, peer) counter key.
func unreadKey(ownerId, peerId int64) string {
	return fmt.Sprintf("chat:unread:%d:%d", ownerId, peerId)
}

// UnreadUsecase keeps the fast per-peer unread counters in the cache,
// with the durable backup on the session row synchronized on clear.
type UnreadUsecase interface {
	Increment(ctx context.Context, ownerId, peerId int64) error
	Get(ctx context.Context, ownerId, peerId int64) (int64, error)
	// Clear deletes the ephemeral counter, zeroes the durable backup
	// and marks the session's inbound messages read.
	Clear(ctx context.Context, ownerId, peerId int64) error
	// TotalFor sums the counters across all of the owner's sessions.
	// O(sessions); not cached.
	TotalFor(ctx context.Context, ownerId int64) (int64, error)
}

type unreadUsecase struct {
	store       cache.Store
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	log         *zap.Logger
}

func NewUnreadUsecase(
	store cache.Store,
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	log *zap.Logger,
) UnreadUsecase {
	return &unreadUsecase{
		store:       store,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		log:         log,
	}
}

func (u *unreadUsecase) Increment(ctx context.Context, ownerId, peerId int64) error {
	_, err := u.store.Incr(ctx, unreadKey(ownerId, peerId))
	return err
}

func (u *unreadUsecase) Get(ctx context.Context, ownerId, peerId int64) (int64, error) {
	return u.store.GetInt(ctx, unreadKey(ownerId, peerId))
}

func (u *unreadUsecase) Clear(ctx context.Context, ownerId, peerId int64) error {
	if err := u.store.Del(ctx, unreadKey(ownerId, peerId)); err != nil {
		return err
	}

	session, err := u.sessionRepo.FindByOwnerAndPeer(ctx, ownerId, peerId)
	if err != nil {
		return err
	}
	if err := u.sessionRepo.SetUnreadCount(ctx, session.Id, 0); err != nil {
		return err
	}
	if err := u.messageRepo.MarkSessionRead(ctx, session.Id, ownerId); err != nil {
		return err
	}

	u.log.Debug("unread cleared",
		zap.Int64("ownerId", ownerId),
		zap.Int64("peerId", peerId))
	return nil
}

func (u *unreadUsecase) TotalFor(ctx context.Context, ownerId int64) (int64, error) {
	sessions, err := u.sessionRepo.List(ctx, ownerId)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, session := range sessions {
		n, err := u.Get(ctx, ownerId, session.PeerId)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
