package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"ttracker/domain"
)

type fakeQueue struct {
	mu       sync.Mutex
	inFlight int
	max      int
	messages []string
	failOn   string
	sleep    time.Duration
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.max {
		f.max = f.inFlight
	}
	f.mu.Unlock()

	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if ctx.Err() != nil {
		return azqueue.EnqueueMessagesResponse{}, ctx.Err()
	}
	if f.failOn != "" && f.failOn == content {
		return azqueue.EnqueueMessagesResponse{}, errors.New("enqueue failure")
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (f *fakeQueue) GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error) {
	return azqueue.GetQueuePropertiesResponse{}, nil
}

func TestPublishEncodesEvent(t *testing.T) {
	fq := &fakeQueue{}
	q := &EventQueue{client: fq, concurrency: 2}
	ev := domain.ChangeEvent{
		ID:         "ev-1",
		EntityType: domain.EntityTask,
		EntityID:   "t1",
		Type:       domain.TaskCreated,
		Data:       []byte(`{"title":"Write code"}`),
		Time:       42,
		UserID:     "user-1",
	}
	if err := q.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fq.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fq.messages))
	}
	var got domain.ChangeEvent
	if err := sonic.Unmarshal([]byte(fq.messages[0]), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != domain.TaskCreated || got.EntityID != "t1" || got.Time != 42 || string(got.Data) != `{"title":"Write code"}` {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestPublishUsesConcurrency(t *testing.T) {
	fq := &fakeQueue{sleep: 5 * time.Millisecond}
	q := &EventQueue{client: fq, concurrency: 4}
	events := make([]domain.ChangeEvent, 8)
	for i := range events {
		events[i] = domain.ChangeEvent{ID: string(rune('a' + i)), Type: domain.EmployeeUpdated}
	}
	if err := q.Publish(context.Background(), events...); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fq.max < 2 || fq.max > 4 {
		t.Fatalf("expected bounded concurrent sends, max in flight: %d", fq.max)
	}
	if len(fq.messages) != len(events) {
		t.Fatalf("expected %d messages, got %d", len(events), len(fq.messages))
	}
}

func TestPublishReturnsFirstError(t *testing.T) {
	bad := domain.ChangeEvent{ID: "bad", Type: domain.TaskDeleted, EntityID: "t9"}
	payload, err := encodeEvent(bad)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fq := &fakeQueue{failOn: payload}
	q := &EventQueue{client: fq, concurrency: 2}

	err = q.Publish(context.Background(), domain.ChangeEvent{ID: "ok", Type: domain.TaskCreated}, bad)
	if err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestPing(t *testing.T) {
	q := &EventQueue{client: &fakeQueue{}}
	if err := q.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
