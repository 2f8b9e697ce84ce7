package worker

import (
	"context"
	"log"
	"time"

	"flamenco-core/internal/service"
)

// Pool drains the recompute retry queue with a fixed number of workers.
type Pool struct {
	queue      service.RecomputeQueue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	errBackoff time.Duration
}

func NewPool(queue service.RecomputeQueue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		errBackoff: time.Second,
	}
}

func (p *Pool) Run(ctx context.Context) {
	log.Printf("[worker] recompute pool started: workers=%d", p.workers)

	jobCh := make(chan string)
	done := make(chan struct{}, p.workers)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for jobID := range jobCh {
				err := p.processor.Process(ctx, jobID)
				if err != nil {
					log.Printf("[worker-%d] recompute job %s error: %v", n, jobID, err)
				}

				// Ack either way: a transient failure was pushed back by the aggregator.
				if ackErr := p.queue.Ack(ctx, jobID); ackErr != nil {
					log.Printf("[worker-%d] ack job %s error: %v", n, jobID, ackErr)
				}
				if err != nil {
					sleep(ctx, p.errBackoff)
				}
			}
		}(i + 1)
	}

	defer func() {
		close(jobCh)
		for i := 0; i < p.workers; i++ {
			<-done
		}
		log.Println("[worker] recompute pool stopped")
	}()

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			// timeout, redis.Nil or ctx cancel; a failing redis should not spin
			sleep(ctx, p.errBackoff/10)
			continue
		}
		select {
		case jobCh <- jobID:
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
