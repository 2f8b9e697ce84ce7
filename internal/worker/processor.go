package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
)

type Recomputer interface {
	Recompute(ctx context.Context, jobID uuid.UUID) (entity.JobStatusChange, error)
}

// Processor retries the status recomputation of one job.
type Processor struct {
	aggregator Recomputer
}

func NewProcessor(aggregator Recomputer) *Processor {
	return &Processor{aggregator: aggregator}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	change, err := p.aggregator.Recompute(ctx, id)
	if err != nil {
		return err
	}

	log.Printf("[worker] job_id=%s status=%s changed=%v duration_ms=%d",
		id, change.To, change.Changed(), time.Since(start).Milliseconds(),
	)
	return nil
}
