package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"telechat/infrastructure/cache"
	"telechat/internal/entity"
	"telechat/internal/repository"
	"telechat/pkg/snowflake"
)

type deliveryFixture struct {
	delivery DeliveryUsecase
	unread   UnreadUsecase
	sessions *fakeSessionRepo
	messages *fakeMessageRepo
	broker   *fakeBroker
	registry *fakeRegistry
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	gen, err := snowflake.New(1)
	if err != nil {
		t.Fatalf("snowflake.New: %v", err)
	}
	log := zap.NewNop()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	users := newFakeUserRepo(
		entity.User{Id: 1, Name: "alice", Enabled: true},
		entity.User{Id: 2, Name: "bob", Enabled: true},
	)
	unread := NewUnreadUsecase(cache.NewMemStore(time.Minute), sessions, messages, log)
	sessionUC := NewSessionUsecase(sessions, unread, gen, log)
	b := newFakeBroker()
	registry := newFakeRegistry(1)

	return &deliveryFixture{
		delivery: NewDeliveryUsecase(gen, sessionUC, sessions, messages, users, unread, b, registry, log),
		unread:   unread,
		sessions: sessions,
		messages: messages,
		broker:   b,
		registry: registry,
	}
}

func textSend(clientMsgId string) SendRequest {
	return SendRequest{
		SenderId:    1,
		ReceiverId:  2,
		Content:     "hello",
		Type:        entity.MessageTypeText,
		ClientMsgId: clientMsgId,
	}
}

func TestSendPersistsAndFansOut(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	msg, err := f.delivery.Send(ctx, textSend("c-1"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg == nil {
		t.Fatal("Send returned nil message for a fresh send")
	}
	if msg.Status != entity.MessageStatusSent {
		t.Fatalf("status = %s, want SENT", msg.Status)
	}
	if msg.Id == 0 {
		t.Fatal("message id not assigned")
	}

	// both session rows carry the preview
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		s, err := f.sessions.FindByOwnerAndPeer(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("session (%d,%d): %v", pair[0], pair[1], err)
		}
		if s.LastMessage != "hello" {
			t.Fatalf("session (%d,%d) preview = %q, want %q", pair[0], pair[1], s.LastMessage, "hello")
		}
	}

	// receiver's counter incremented
	n, err := f.unread.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unread Get: %v", err)
	}
	if n != 1 {
		t.Fatalf("receiver unread = %d, want 1", n)
	}

	// one frame published for the receiver
	frames := f.broker.framesFor(2)
	if len(frames) != 1 {
		t.Fatalf("frames for receiver = %d, want 1", len(frames))
	}
	if frames[0].Frame.Type != entity.FrameMessage {
		t.Fatalf("frame type = %q, want %q", frames[0].Frame.Type, entity.FrameMessage)
	}
	var carried entity.Message
	if err := json.Unmarshal(frames[0].Frame.Data, &carried); err != nil {
		t.Fatalf("unmarshal carried message: %v", err)
	}
	if carried.Id != msg.Id || carried.Content != "hello" {
		t.Fatalf("carried message = %+v, want id %d content hello", carried, msg.Id)
	}

	// sender got an ack on their local connection
	acks := f.registry.sentTo(1)
	if len(acks) != 1 {
		t.Fatalf("sender acks = %d, want 1", len(acks))
	}
	var ack entity.Frame
	if err := json.Unmarshal(acks[0], &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Type != entity.FrameAck {
		t.Fatalf("ack type = %q, want %q", ack.Type, entity.FrameAck)
	}
}

func TestSendDuplicateClientMsgIdIsNoOp(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	if _, err := f.delivery.Send(ctx, textSend("c-1")); err != nil {
		t.Fatalf("first Send: %v", err)
	}

	msg, err := f.delivery.Send(ctx, textSend("c-1"))
	if err != nil {
		t.Fatalf("retransmit Send: %v", err)
	}
	if msg != nil {
		t.Fatal("retransmit produced a new message")
	}

	if f.messages.count() != 1 {
		t.Fatalf("stored messages = %d, want 1", f.messages.count())
	}
	n, err := f.unread.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unread Get: %v", err)
	}
	if n != 1 {
		t.Fatalf("receiver unread = %d, want 1 (no double count)", n)
	}
	if len(f.broker.framesFor(2)) != 1 {
		t.Fatal("retransmit republished the frame")
	}
}

func TestSendValidation(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  SendRequest
		want error
	}{
		{
			name: "empty content",
			req:  SendRequest{SenderId: 1, ReceiverId: 2, Type: entity.MessageTypeText},
			want: ErrEmptyContent,
		},
		{
			name: "bad type",
			req:  SendRequest{SenderId: 1, ReceiverId: 2, Content: "x", Type: "STICKER"},
			want: ErrInvalidMessageType,
		},
		{
			name: "unknown receiver",
			req:  SendRequest{SenderId: 1, ReceiverId: 99, Content: "x", Type: entity.MessageTypeText},
			want: ErrReceiverNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.delivery.Send(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if f.messages.count() != 0 {
		t.Fatalf("rejected sends persisted %d messages", f.messages.count())
	}
}

func TestSendSurvivesBrokerFailure(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	f.broker.failFor[2] = errors.New("redis gone")

	msg, err := f.delivery.Send(ctx, textSend(""))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg == nil {
		t.Fatal("Send returned nil despite persisted message")
	}
	if f.messages.count() != 1 {
		t.Fatalf("stored messages = %d, want 1", f.messages.count())
	}
	// the counter still moved; delivery catches up on reconnect
	n, err := f.unread.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unread Get: %v", err)
	}
	if n != 1 {
		t.Fatalf("receiver unread = %d, want 1", n)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		req := textSend("")
		req.Content = content
		if _, err := f.delivery.Send(ctx, req); err != nil {
			t.Fatalf("Send %q: %v", content, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	history, err := f.delivery.History(ctx, 1, 2, 1, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Content != "three" || history[2].Content != "one" {
		t.Fatalf("history order = [%s %s %s], want newest first",
			history[0].Content, history[1].Content, history[2].Content)
	}
}

func TestMarkDeliveredAdvancesStatus(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	msg, err := f.delivery.Send(ctx, textSend(""))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := f.delivery.MarkDelivered(ctx, 2, msg.Id); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	stored, err := f.messages.Get(ctx, msg.Id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != entity.MessageStatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", stored.Status)
	}

	// only the recipient may confirm receipt
	if err := f.delivery.MarkDelivered(ctx, 1, msg.Id); !errors.Is(err, repository.ErrMessageNotFound) {
		t.Fatalf("sender receipt err = %v, want ErrMessageNotFound", err)
	}
	if err := f.delivery.MarkDelivered(ctx, 2, 9999); !errors.Is(err, repository.ErrMessageNotFound) {
		t.Fatalf("unknown message err = %v, want ErrMessageNotFound", err)
	}
}

func TestMarkDeliveredDoesNotRegressRead(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	msg, err := f.delivery.Send(ctx, textSend(""))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := f.delivery.MarkRead(ctx, 2, 1); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	// a late receipt must not pull a READ message back to DELIVERED
	if err := f.delivery.MarkDelivered(ctx, 2, msg.Id); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	stored, err := f.messages.Get(ctx, msg.Id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != entity.MessageStatusRead {
		t.Fatalf("status = %s, want READ", stored.Status)
	}
}

func TestMarkReadClearsCounterAndMessages(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	if _, err := f.delivery.Send(ctx, textSend("")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := f.delivery.MarkRead(ctx, 2, 1); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	n, err := f.unread.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unread Get: %v", err)
	}
	if n != 0 {
		t.Fatalf("receiver unread = %d, want 0", n)
	}
	for _, m := range f.messages.messages {
		if m.ReceiverId == 2 && m.Status != entity.MessageStatusRead {
			t.Fatalf("message %d status = %s, want READ", m.Id, m.Status)
		}
	}
}
