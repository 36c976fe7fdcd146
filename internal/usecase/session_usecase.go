package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"telechat/internal/entity"
	"telechat/internal/repository"
	"telechat/pkg/snowflake"
)

// SessionUsecase owns conversation records: the resolve-or-create pair
// invariant and the conversation list.
type SessionUsecase interface {
	// Resolve returns the owner's session with peer, creating the
	// bidirectional pair on first contact. Safe under concurrent first
	// sends from both directions.
	Resolve(ctx context.Context, ownerId, peerId int64) (entity.Session, error)
	// List returns the owner's sessions newest-first, each merged with
	// its live unread count.
	List(ctx context.Context, ownerId int64) ([]entity.SessionView, error)
	Find(ctx context.Context, ownerId, peerId int64) (entity.Session, error)
}

type sessionUsecase struct {
	sessionRepo repository.SessionRepository
	unread      UnreadUsecase
	gen         *snowflake.Generator
	log         *zap.Logger
}

func NewSessionUsecase(
	sessionRepo repository.SessionRepository,
	unread UnreadUsecase,
	gen *snowflake.Generator,
	log *zap.Logger,
) SessionUsecase {
	return &sessionUsecase{
		sessionRepo: sessionRepo,
		unread:      unread,
		gen:         gen,
		log:         log,
	}
}

func (u *sessionUsecase) Resolve(ctx context.Context, ownerId, peerId int64) (entity.Session, error) {
	session, err := u.sessionRepo.FindByOwnerAndPeer(ctx, ownerId, peerId)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return entity.Session{}, err
	}

	// First contact: create both directions of the pair. The unique
	// (owner, peer) index plus upsert makes concurrent creation from
	// either side converge on one row per direction.
	now := time.Now()

	ownId, err := u.gen.Next()
	if err != nil {
		return entity.Session{}, err
	}
	peerRowId, err := u.gen.Next()
	if err != nil {
		return entity.Session{}, err
	}

	own := newSession(ownId, ownerId, peerId, now)
	peerRow := newSession(peerRowId, peerId, ownerId, now)

	stored, err := u.sessionRepo.Upsert(ctx, own)
	if err != nil {
		return entity.Session{}, err
	}
	if _, err := u.sessionRepo.Upsert(ctx, peerRow); err != nil {
		return entity.Session{}, err
	}

	u.log.Debug("session pair created",
		zap.Int64("ownerId", ownerId),
		zap.Int64("peerId", peerId))
	return stored, nil
}

func (u *sessionUsecase) List(ctx context.Context, ownerId int64) ([]entity.SessionView, error) {
	sessions, err := u.sessionRepo.List(ctx, ownerId)
	if err != nil {
		return nil, err
	}

	views := make([]entity.SessionView, 0, len(sessions))
	for _, session := range sessions {
		n, err := u.unread.Get(ctx, ownerId, session.PeerId)
		if err != nil {
			// counter unavailable: fall back to the durable backup
			u.log.Warn("unread counter read failed", zap.Error(err))
			n = session.UnreadCount
		}
		views = append(views, entity.SessionView{Session: session, Unread: n})
	}
	return views, nil
}

func (u *sessionUsecase) Find(ctx context.Context, ownerId, peerId int64) (entity.Session, error) {
	return u.sessionRepo.FindByOwnerAndPeer(ctx, ownerId, peerId)
}

func newSession(id, ownerId, peerId int64, now time.Time) entity.Session {
	return entity.Session{
		Id:        id,
		UserId:    ownerId,
		PeerId:    peerId,
		IsGroup:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
