package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"ttracker/domain"
)

const defaultQueueConcurrency = 4

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

// EventQueue publishes change events to an Azure Storage queue.
type EventQueue struct {
	client      queueClient
	concurrency int
}

// NewEventQueue connects to the named queue using the given connection string.
func NewEventQueue(connStr, queueName string) (*EventQueue, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &EventQueue{client: cq, concurrency: defaultQueueConcurrency}, nil
}

// Publish sends events concurrently. Ordering between events of one call is
// not guaranteed; consumers order by the event time.
func (q *EventQueue) Publish(ctx context.Context, events ...domain.ChangeEvent) error {
	if len(events) == 1 {
		return q.send(ctx, events[0])
	}
	g, ctx := errgroup.WithContext(ctx)
	limit := q.concurrency
	if limit <= 0 {
		limit = defaultQueueConcurrency
	}
	g.SetLimit(limit)
	for _, ev := range events {
		g.Go(func() error { return q.send(ctx, ev) })
	}
	return g.Wait()
}

// Ping checks that the queue exists and is reachable.
func (q *EventQueue) Ping(ctx context.Context) error {
	_, err := q.client.GetProperties(ctx, nil)
	return err
}

func (q *EventQueue) send(ctx context.Context, ev domain.ChangeEvent) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueMessage(ctx, data, nil); err != nil {
		return fmt.Errorf("enqueue %s %s: %w", ev.Type, ev.EntityID, err)
	}
	return nil
}

func encodeEvent(ev domain.ChangeEvent) (string, error) {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
