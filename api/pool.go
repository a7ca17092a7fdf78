package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"ttracker/domain"
)

// EventSenderConfig sizes the change-event worker pool.
type EventSenderConfig struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
	HandoffTimeout time.Duration
	// Retries is how many times a failed publish is retried with backoff.
	Retries      int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// EventSenderConfigFromEnv reads EVENT_* variables, falling back to defaults
// for missing or invalid values.
func EventSenderConfigFromEnv() EventSenderConfig {
	return EventSenderConfig{
		Workers:        envInt("EVENT_WORKERS", 4),
		Buffer:         envInt("EVENT_BUFFER", 1024),
		PublishTimeout: envDur("EVENT_PUBLISH_TIMEOUT", 30*time.Second),
		HandoffTimeout: envDur("EVENT_HANDOFF_TIMEOUT", 15*time.Millisecond),
		Retries:        envInt("EVENT_RETRIES", 3),
		RetryInitial:   envDur("EVENT_RETRY_INITIAL", 100*time.Millisecond),
		RetryMax:       envDur("EVENT_RETRY_MAX", 2*time.Second),
	}
}

// EventSender hands change events to a bounded pool of publishing workers.
// When the pool is saturated the event is published inline.
type EventSender struct {
	pub    EventPublisher
	logger *log.Logger
	cfg    EventSenderConfig
	jobs   chan domain.ChangeEvent
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEventSender starts the worker pool. A nil publisher yields a sender that
// drops every event.
func NewEventSender(pub EventPublisher, logger *log.Logger, cfg EventSenderConfig) *EventSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	s := &EventSender{pub: pub, logger: logger, cfg: cfg}
	if pub == nil {
		logger.Warn("change feed disabled; events will be dropped")
		return s
	}
	s.jobs = make(chan domain.ChangeEvent, cfg.Buffer)
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Infof("event sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.PublishTimeout, cfg.HandoffTimeout)
	return s
}

// Send queues ev for publishing. It never fails the caller; delivery errors
// are logged.
func (s *EventSender) Send(ev domain.ChangeEvent) {
	if s == nil || s.pub == nil {
		return
	}
	if s.tryHandoff(ev) {
		return
	}
	s.logger.Warn("event buffer saturated; publishing inline")
	s.publish(ev, -1)
}

// Close stops accepting events and waits for queued ones to be published.
func (s *EventSender) Close() {
	if s == nil || s.jobs == nil {
		return
	}
	s.once.Do(func() {
		close(s.jobs)
		s.wg.Wait()
	})
}

func (s *EventSender) worker(id int) {
	defer s.wg.Done()
	for ev := range s.jobs {
		s.publish(ev, id)
	}
}

func (s *EventSender) publish(ev domain.ChangeEvent, worker int) {
	var err error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(exponentialBackoff(attempt, s.cfg.RetryInitial, s.cfg.RetryMax))
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout())
		err = s.pub.Publish(ctx, ev)
		cancel()
		if err == nil {
			return
		}
	}
	s.logger.Errorf("publish failed, err: %v, event: %s, entity: %s, worker: %d", err, ev.Type, ev.EntityID, worker)
}

func (s *EventSender) publishTimeout() time.Duration {
	if s.cfg.PublishTimeout <= 0 {
		return 30 * time.Second
	}
	return s.cfg.PublishTimeout
}

func (s *EventSender) tryHandoff(ev domain.ChangeEvent) bool {
	if ok, closed := trySendNonBlocking(s.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if s.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(s.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, _ := sendWithTimer(s.jobs, ev, timer.C)
	return ok
}

// exponentialBackoff doubles initial per attempt, capped at max.
func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func trySendNonBlocking(ch chan domain.ChangeEvent, ev domain.ChangeEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.ChangeEvent, ev domain.ChangeEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
