package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telechat/infrastructure/broker"
	"telechat/infrastructure/cache"
	"telechat/internal/entity"
	"telechat/internal/metrics"
	"telechat/internal/repository"
)

const (
	// onlineTTL bounds how long a liveness flag survives without a
	// heartbeat. An expired flag reads as offline; callers cannot
	// distinguish a lapsed heartbeat from a deliberate disconnect.
	onlineTTL = 300 * time.Second

	// broadcastConcurrency bounds the presence fan-out so one large
	// friend set cannot monopolize the scheduler.
	broadcastConcurrency = 8
)

func onlineKey(userId int64) string {
	return fmt.Sprintf("user:online:%d", userId)
}

// PresenceUsecase tracks short-lived online state and broadcasts
// transitions to the user's friends. Broadcast is best-effort, at most
// once per transition.
type PresenceUsecase interface {
	MarkOnline(ctx context.Context, userId int64) error
	MarkOffline(ctx context.Context, userId int64) error
	// Heartbeat extends the liveness TTL without re-broadcasting.
	Heartbeat(ctx context.Context, userId int64) error
	IsOnline(ctx context.Context, userId int64) (bool, error)
}

type presenceUsecase struct {
	store      cache.Store
	userRepo   repository.UserRepository
	friendRepo repository.FriendshipRepository
	broker     broker.Broker
	ttl        time.Duration
	log        *zap.Logger
}

func NewPresenceUsecase(
	store cache.Store,
	userRepo repository.UserRepository,
	friendRepo repository.FriendshipRepository,
	b broker.Broker,
	log *zap.Logger,
) PresenceUsecase {
	return &presenceUsecase{
		store:      store,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		broker:     b,
		ttl:        onlineTTL,
		log:        log,
	}
}

func (u *presenceUsecase) MarkOnline(ctx context.Context, userId int64) error {
	if err := u.store.SetTTL(ctx, onlineKey(userId), "1", u.ttl); err != nil {
		return err
	}
	u.mirrorStatus(ctx, userId, entity.UserStatusOnline)
	u.broadcast(ctx, userId, entity.UserStatusOnline)
	return nil
}

func (u *presenceUsecase) MarkOffline(ctx context.Context, userId int64) error {
	if err := u.store.Del(ctx, onlineKey(userId)); err != nil {
		return err
	}
	u.mirrorStatus(ctx, userId, entity.UserStatusOffline)
	u.broadcast(ctx, userId, entity.UserStatusOffline)
	return nil
}

func (u *presenceUsecase) Heartbeat(ctx context.Context, userId int64) error {
	return u.store.Expire(ctx, onlineKey(userId), u.ttl)
}

func (u *presenceUsecase) IsOnline(ctx context.Context, userId int64) (bool, error) {
	return u.store.Exists(ctx, onlineKey(userId))
}

// mirrorStatus copies the ephemeral flag onto the durable user row.
// The mirror may lag; it is never read on the hot path.
func (u *presenceUsecase) mirrorStatus(ctx context.Context, userId int64, status entity.UserStatus) {
	if err := u.userRepo.UpdateStatus(ctx, userId, status); err != nil {
		u.log.Warn("status mirror failed",
			zap.Int64("userId", userId),
			zap.Error(err))
	}
}

// broadcast notifies the user's current friends of the transition. A
// friend with no reachable connection is skipped, not retried; one
// failure never stops the rest of the fan-out.
func (u *presenceUsecase) broadcast(ctx context.Context, userId int64, status entity.UserStatus) {
	friends, err := u.friendRepo.FriendsOf(ctx, userId)
	if err != nil {
		u.log.Warn("friend lookup failed", zap.Int64("userId", userId), zap.Error(err))
		return
	}
	if len(friends) == 0 {
		return
	}

	payload, err := entity.EncodeFrame(entity.FramePresence, entity.PresenceEvent{
		UserId:    userId,
		Status:    status,
		Timestamp: time.Now(),
	})
	if err != nil {
		u.log.Error("presence frame encode failed", zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(broadcastConcurrency)
	for _, friendId := range friends {
		friendId := friendId
		g.Go(func() error {
			if err := u.broker.Publish(ctx, friendId, payload); err != nil {
				u.log.Warn("presence publish failed",
					zap.Int64("friendId", friendId),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.PresenceBroadcasts.Inc()
	u.log.Debug("presence broadcast",
		zap.Int64("userId", userId),
		zap.String("status", string(status)),
		zap.Int("friends", len(friends)))
}
