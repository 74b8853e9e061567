package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{exchange: "geodonis.accounts", ch: ch}
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	evt := domain.AccountEvent{ID: "evt-1", Type: domain.EventPasswordResetCompleted, UserID: 12, Email: "a@example.com", OccurredAt: at}
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if ch.exchange != "geodonis.accounts" || ch.key != "password_reset.completed" {
		t.Fatalf("routed to %q/%q", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" || ch.msg.MessageId != "evt-1" {
		t.Fatalf("unexpected publishing: %+v", ch.msg)
	}

	var body map[string]any
	if err := json.Unmarshal(ch.msg.Body, &body); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if body["type"] != "password_reset.completed" || body["user_id"] != float64(12) {
		t.Fatalf("body = %v", body)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p := &Publisher{exchange: "x", ch: &fakeChannel{err: boom}}
	if err := p.Publish(context.Background(), domain.AccountEvent{Type: domain.EventUserCreated}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch}
	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("Close: %v closed=%v", err, ch.closed)
	}
}
