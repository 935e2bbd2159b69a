package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

type fakeOutboxRepo struct {
	pending []domain.OutboxMessage
	sent    []string
}

func (r *fakeOutboxRepo) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	r.pending = append(r.pending, *msg)
	return nil
}

func (r *fakeOutboxRepo) GetPendingMessages(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkMessageSent(ctx context.Context, id string) error {
	r.sent = append(r.sent, id)
	return nil
}

type fakeProducer struct {
	produced []string // topic/key pairs
	failFor  map[string]error
}

func (p *fakeProducer) Produce(ctx context.Context, topic string, key, message []byte) error {
	if err, ok := p.failFor[string(key)]; ok {
		return err
	}
	p.produced = append(p.produced, topic+"/"+string(key))
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestProcessPendingMessages(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		{ID: "m-1", Topic: "order-status-events", Key: "o-1", Payload: []byte(`{}`)},
		{ID: "m-2", Topic: "order-status-events", Key: "o-2", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{}
	p := NewProcessor(repo, producer, time.Second, time.Second, zap.NewNop())

	p.processPendingMessages(context.Background())

	if len(producer.produced) != 2 {
		t.Fatalf("produced %d messages, want 2", len(producer.produced))
	}
	if producer.produced[0] != "order-status-events/o-1" {
		t.Errorf("first message = %q", producer.produced[0])
	}
	if len(repo.sent) != 2 || repo.sent[0] != "m-1" || repo.sent[1] != "m-2" {
		t.Errorf("marked sent = %v", repo.sent)
	}
}

func TestProcessSkipsFailedProduceButContinues(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		{ID: "m-1", Topic: "order-status-events", Key: "o-1", Payload: []byte(`{}`)},
		{ID: "m-2", Topic: "order-status-events", Key: "o-2", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failFor: map[string]error{"o-1": errors.New("broker unavailable")}}
	p := NewProcessor(repo, producer, time.Second, time.Second, zap.NewNop())

	p.processPendingMessages(context.Background())

	if len(repo.sent) != 1 || repo.sent[0] != "m-2" {
		t.Errorf("marked sent = %v, failed message must stay pending", repo.sent)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	p := NewProcessor(repo, &fakeProducer{}, time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after context cancel")
	}
}
