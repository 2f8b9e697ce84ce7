package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecomputeQueue holds jobs whose status recomputation failed and must be retried.
type RecomputeQueue interface {
	Push(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// redisRecomputeQueue is a single-lane reliable queue:
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing
type redisRecomputeQueue struct {
	rdb  *redis.Client
	lane Lane
}

func NewRedisRecomputeQueue(rdb *redis.Client, queueKey string) RecomputeQueue {
	return &redisRecomputeQueue{
		rdb:  rdb,
		lane: Lane{QueueKey: queueKey, ProcessingKey: queueKey + ":processing"},
	}
}

func (q *redisRecomputeQueue) Push(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.lane.QueueKey, jobID).Err()
}

// ClaimBlocking returns redis.Nil when nothing arrived before the timeout.
func (q *redisRecomputeQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return q.rdb.BRPopLPush(ctx, q.lane.QueueKey, q.lane.ProcessingKey, timeout).Result()
}

func (q *redisRecomputeQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.lane.ProcessingKey, 1, jobID).Err()
}

func (q *redisRecomputeQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		err := q.rdb.RPopLPush(ctx, q.lane.ProcessingKey, q.lane.QueueKey).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
