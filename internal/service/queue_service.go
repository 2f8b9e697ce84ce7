package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskQueue hands queued tasks to managers, per project and job priority.
type TaskQueue interface {
	Enqueue(ctx context.Context, project uuid.UUID, taskID string, priority int) error
	ClaimBlocking(ctx context.Context, projects []uuid.UUID, timeout time.Duration) (string, error)
	Ack(ctx context.Context, taskID string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// redisTaskQueue implements a reliable queue with priorities using Redis lists.
// Every project has three lanes: high/normal/low.
// Claim: RPOPLPUSH sweep, then BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from correct processing list (stored in processingMapKey hash)
// Lanes that ever received a task are remembered in lanesKey for the reaper.
type redisTaskQueue struct {
	rdb              *redis.Client
	queueKey         string
	processingKey    string
	processingMapKey string
	lanesKey         string
}

func NewRedisTaskQueue(rdb *redis.Client, queueKey, processingKey string) TaskQueue {
	return &redisTaskQueue{
		rdb:              rdb,
		queueKey:         queueKey,
		processingKey:    processingKey,
		processingMapKey: processingKey + ":map",
		lanesKey:         queueKey + ":lanes",
	}
}

var laneNames = [3]string{"low", "normal", "high"}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return p
}

func (q *redisTaskQueue) lane(project uuid.UUID, priority int) Lane {
	suffix := ":" + project.String() + ":" + laneNames[clampPriority(priority)]
	return Lane{QueueKey: q.queueKey + suffix, ProcessingKey: q.processingKey + suffix}
}

// lanesByPriority lists high lanes of all projects first, then normal, then low.
func (q *redisTaskQueue) lanesByPriority(projects []uuid.UUID) []Lane {
	lanes := make([]Lane, 0, len(projects)*len(laneNames))
	for p := len(laneNames) - 1; p >= 0; p-- {
		for _, project := range projects {
			lanes = append(lanes, q.lane(project, p))
		}
	}
	return lanes
}

func (q *redisTaskQueue) Enqueue(ctx context.Context, project uuid.UUID, taskID string, priority int) error {
	ln := q.lane(project, priority)

	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, q.lanesKey, ln.QueueKey+"|"+ln.ProcessingKey)
		pipe.LPush(ctx, ln.QueueKey, taskID)
		return nil
	})
	return err
}

// ClaimBlocking sweeps every lane in priority order without blocking and
// only then blocks on a single lane, rotating through the lanes between
// sweeps. Every lane is polled at least once whatever the timeout. It
// returns redis.Nil when nothing arrived before the timeout.
func (q *redisTaskQueue) ClaimBlocking(ctx context.Context, projects []uuid.UUID, timeout time.Duration) (string, error) {
	if len(projects) == 0 {
		return "", redis.Nil
	}
	lanes := q.lanesByPriority(projects)

	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	// BRPOPLPUSH waits in whole seconds.
	const slot = 1 * time.Second

	for turn := 0; ; turn++ {
		for _, ln := range lanes {
			id, err := q.rdb.RPopLPush(ctx, ln.QueueKey, ln.ProcessingKey).Result()
			if err == nil {
				return q.track(ctx, id, ln)
			}
			if !errors.Is(err, redis.Nil) {
				return "", err
			}
		}

		wait := slot
		if !forever {
			remain := time.Until(deadline)
			if remain <= 0 {
				return "", redis.Nil
			}
			wait = min(wait, remain)
		}

		ln := lanes[turn%len(lanes)]
		id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
		if err == nil {
			return q.track(ctx, id, ln)
		}
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
	}
}

// track remembers which processing list holds id, for Ack.
func (q *redisTaskQueue) track(ctx context.Context, id string, ln Lane) (string, error) {
	if err := q.rdb.HSet(ctx, q.processingMapKey, id, ln.ProcessingKey).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (q *redisTaskQueue) Ack(ctx context.Context, taskID string) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Requeued by the reaper in the meantime; the next claimer skips it.
			return nil
		}
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, taskID).Err(); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.processingMapKey, taskID).Err()
	return nil
}

// RequeueStale moves items from processing back to queue per lane.
// Claims finish within one request, so anything left in a processing list
// belongs to a claimer that died before acking.
func (q *redisTaskQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	members, err := q.rdb.SMembers(ctx, q.lanesKey).Result()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, m := range members {
		ln, ok := parseLane(m)
		if !ok {
			continue
		}
		for i := int64(0); i < maxPerLane; i++ {
			id, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return moved, err
			}
			if id != "" {
				moved++
				_ = q.rdb.HDel(ctx, q.processingMapKey, id).Err()
			}
		}
	}
	return moved, nil
}

func parseLane(member string) (Lane, bool) {
	queueKey, processingKey, ok := strings.Cut(member, "|")
	return Lane{QueueKey: queueKey, ProcessingKey: processingKey}, ok
}
