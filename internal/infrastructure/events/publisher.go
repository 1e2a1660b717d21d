package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/audit"
)

const defaultQueueSize = 1024

// AuditPublisher delivers audit events to the repository through a single
// bounded channel drained by one worker, so events arrive in emission order.
// Emit blocks when the queue is full; the campaign loop slows down rather
// than losing compliance records.
type AuditPublisher struct {
	repo   audit.Repository
	logger *zap.Logger

	queue     chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAuditPublisher starts the drain worker immediately.
func NewAuditPublisher(repo audit.Repository, logger *zap.Logger, queueSize int) *AuditPublisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &AuditPublisher{
		repo:   repo,
		logger: logger,
		queue:  make(chan audit.Event, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Emit masks contact details and enqueues the event. Safe for concurrent use.
func (p *AuditPublisher) Emit(event audit.Event) {
	event.Details = audit.MaskDetails(event.Details)
	p.queue <- event
}

func (p *AuditPublisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.repo.Insert(ctx, event); err != nil {
			// The event is still logged so the record survives somewhere.
			p.logger.Error("audit event insert failed",
				zap.String("component", event.Component),
				zap.String("action", event.Action),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops intake and blocks until every queued event is persisted.
func (p *AuditPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}
