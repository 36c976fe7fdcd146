package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"telechat/internal/entity"
	"telechat/internal/repository"
)

// --- session repository fake with (owner, peer) unique-index semantics ---

type pairKey struct{ owner, peer int64 }

type fakeSessionRepo struct {
	mu     sync.Mutex
	byKey  map[pairKey]*entity.Session
	byId   map[int64]*entity.Session
	failOn string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		byKey: make(map[pairKey]*entity.Session),
		byId:  make(map[int64]*entity.Session),
	}
}

func (r *fakeSessionRepo) Upsert(_ context.Context, session entity.Session) (entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{session.UserId, session.PeerId}
	if stored, ok := r.byKey[key]; ok {
		return *stored, nil
	}
	s := session
	r.byKey[key] = &s
	r.byId[s.Id] = &s
	return s, nil
}

func (r *fakeSessionRepo) FindByOwnerAndPeer(_ context.Context, ownerId, peerId int64) (entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.byKey[pairKey{ownerId, peerId}]; ok {
		return *stored, nil
	}
	return entity.Session{}, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindById(_ context.Context, sessionId int64) (entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.byId[sessionId]; ok {
		return *stored, nil
	}
	return entity.Session{}, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) List(_ context.Context, ownerId int64) ([]entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Session
	for _, s := range r.byKey {
		if s.UserId == ownerId {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) RecordLastMessage(_ context.Context, sessionId int64, preview string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byId[sessionId]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.LastMessage = preview
	s.LastMessageTime = at
	s.UpdatedAt = at
	return nil
}

func (r *fakeSessionRepo) SetUnreadCount(_ context.Context, sessionId int64, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byId[sessionId]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.UnreadCount = count
	return nil
}

func (r *fakeSessionRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// --- message repository fake with unique clientMsgId semantics ---

type fakeMessageRepo struct {
	mu         sync.Mutex
	messages   []entity.Message
	byClientId map[string]bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byClientId: make(map[string]bool)}
}

func (r *fakeMessageRepo) Create(_ context.Context, message entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ClientMsgId != "" {
		if r.byClientId[message.ClientMsgId] {
			return repository.ErrDuplicateClientMsgId
		}
		r.byClientId[message.ClientMsgId] = true
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *fakeMessageRepo) Get(_ context.Context, messageId int64) (entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Id == messageId {
			return m, nil
		}
	}
	return entity.Message{}, repository.ErrMessageNotFound
}

func (r *fakeMessageRepo) ExistsByClientMsgId(_ context.Context, clientMsgId string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byClientId[clientMsgId], nil
}

func (r *fakeMessageRepo) ListBySession(_ context.Context, sessionId int64, page, size int) ([]entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Message
	for _, m := range r.messages {
		if m.SessionId == sessionId {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) AdvanceStatus(_ context.Context, messageId int64, status entity.MessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].Id == messageId && entity.StatusRank(status) > entity.StatusRank(r.messages[i].Status) {
			r.messages[i].Status = status
		}
	}
	return nil
}

func (r *fakeMessageRepo) MarkSessionRead(_ context.Context, sessionId, ownerId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].SessionId == sessionId && r.messages[i].ReceiverId == ownerId {
			r.messages[i].Status = entity.MessageStatusRead
		}
	}
	return nil
}

func (r *fakeMessageRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// --- user repository fake ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func newFakeUserRepo(users ...entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*entity.User)}
	for _, u := range users {
		u := u
		r.users[u.Id] = &u
	}
	return r
}

func (r *fakeUserRepo) Get(_ context.Context, userId int64) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userId]; ok {
		return *u, nil
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (r *fakeUserRepo) GetByName(_ context.Context, name string) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			return *u, nil
		}
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (r *fakeUserRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := user
	r.users[u.Id] = &u
	return nil
}

func (r *fakeUserRepo) UpdateStatus(_ context.Context, userId int64, status entity.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Status = status
	return nil
}

func (r *fakeUserRepo) Index(_ context.Context, userIds []int64) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.User
	for _, id := range userIds {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) EnsureIndexes(context.Context) error { return nil }

// --- friendship fake ---

type fakeFriendRepo struct {
	friends map[int64][]int64
}

func (r *fakeFriendRepo) FriendsOf(_ context.Context, userId int64) ([]int64, error) {
	return r.friends[userId], nil
}

// --- refresh token fake ---

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{tokens: make(map[string]*entity.RefreshToken)}
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, token entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := token
	r.tokens[t.Token] = &t
	return nil
}

func (r *fakeRefreshTokenRepo) GetByToken(_ context.Context, token string) (entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		return *t, nil
	}
	return entity.RefreshToken{}, repository.ErrRefreshTokenNotFound
}

func (r *fakeRefreshTokenRepo) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllByUserId(_ context.Context, userId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserId == userId {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpired(context.Context) error { return nil }

// --- broker fake ---

type publishedFrame struct {
	ReceiverId int64
	Frame      entity.Frame
}

type fakeBroker struct {
	mu      sync.Mutex
	frames  []publishedFrame
	failFor map[int64]error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{failFor: make(map[int64]error)}
}

func (b *fakeBroker) Publish(_ context.Context, receiverId int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failFor[receiverId]; ok {
		return err
	}
	var frame entity.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	b.frames = append(b.frames, publishedFrame{ReceiverId: receiverId, Frame: frame})
	return nil
}

func (b *fakeBroker) framesFor(receiverId int64) []publishedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedFrame
	for _, f := range b.frames {
		if f.ReceiverId == receiverId {
			out = append(out, f)
		}
	}
	return out
}

func (b *fakeBroker) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// --- live-connection registry fake ---

type fakeRegistry struct {
	mu    sync.Mutex
	local map[int64]bool
	sent  map[int64][][]byte
}

func newFakeRegistry(localIds ...int64) *fakeRegistry {
	r := &fakeRegistry{local: make(map[int64]bool), sent: make(map[int64][][]byte)}
	for _, id := range localIds {
		r.local[id] = true
	}
	return r
}

func (r *fakeRegistry) Send(userId int64, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.local[userId] {
		return false
	}
	r.sent[userId] = append(r.sent[userId], payload)
	return true
}

func (r *fakeRegistry) IsLocal(userId int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[userId]
}

func (r *fakeRegistry) sentTo(userId int64) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[userId]
}
