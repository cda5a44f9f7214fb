package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
)

// DefaultDedupWindow is how long a deduplication id suppresses repeat sends.
const DefaultDedupWindow = 5 * time.Minute

const dedupKeyPrefix = "dedup:"

// Compile-time checks: *RedisQueue is both ends of the work queue.
var (
	_ export.Queue    = (*RedisQueue)(nil)
	_ export.Receiver = (*RedisQueue)(nil)
)

// RedisQueueOptions configures a RedisQueue.
type RedisQueueOptions struct {
	Stream      string
	Group       string
	Consumer    string
	DedupWindow time.Duration
	// Block is how long Receive waits for a new entry before returning empty.
	Block time.Duration
}

// RedisQueue is a work queue on a Redis stream. Sends are deduplicated by
// DedupID for DedupWindow; receives go through a consumer group so entries that
// are never acked remain pending.
type RedisQueue struct {
	rdb  *redis.Client
	opts RedisQueueOptions
}

// NewRedisQueue creates a RedisQueue.
func NewRedisQueue(rdb *redis.Client, opts RedisQueueOptions) *RedisQueue {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	return &RedisQueue{rdb: rdb, opts: opts}
}

// SendBatch appends msgs to the stream, skipping any whose DedupID was sent
// within the dedup window. The batch is one pipelined round trip for the dedup
// claims and one transaction for the appends. Claims whose append failed are
// released so a retried send is not suppressed.
func (q *RedisQueue) SendBatch(ctx context.Context, group string, msgs []export.QueueMessage) error {
	claims := make([]*redis.BoolCmd, len(msgs))
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range msgs {
			claims[i] = p.SetNX(ctx, q.dedupKey(group, m.DedupID), m.ID, q.opts.DedupWindow)
		}
		return nil
	})
	if err != nil {
		q.release(ctx, group, msgs, claims, nil)
		return fmt.Errorf("claim dedup ids on %s: %w", q.opts.Stream, err)
	}

	adds := make([]*redis.StringCmd, len(msgs))
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range msgs {
			if !claims[i].Val() {
				continue
			}
			adds[i] = p.XAdd(ctx, &redis.XAddArgs{
				Stream: q.opts.Stream,
				Values: map[string]any{
					"id":    m.ID,
					"group": group,
					"body":  string(m.Body),
				},
			})
		}
		return nil
	})
	if err != nil {
		q.release(ctx, group, msgs, claims, adds)
		return fmt.Errorf("send batch to %s: %w", q.opts.Stream, err)
	}
	return nil
}

// release deletes the dedup keys this call claimed for messages that were not
// appended. A nil adds means nothing was appended.
func (q *RedisQueue) release(ctx context.Context, group string, msgs []export.QueueMessage, claims []*redis.BoolCmd, adds []*redis.StringCmd) {
	var keys []string
	for i, m := range msgs {
		if claims[i] == nil || !claims[i].Val() {
			continue
		}
		if adds != nil && adds[i] != nil && adds[i].Err() == nil {
			continue
		}
		keys = append(keys, q.dedupKey(group, m.DedupID))
	}
	if len(keys) == 0 {
		return
	}
	// Best effort: a failed delete only delays a retry until the window ends.
	_ = q.rdb.Del(context.WithoutCancel(ctx), keys...).Err() //nolint:errcheck // send error is returned
}

// EnsureGroup creates the consumer group (and the stream) if it does not exist.
func (q *RedisQueue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", q.opts.Group, q.opts.Stream, err)
	}
	return nil
}

// Receive reads at most one new entry for this consumer.
func (q *RedisQueue) Receive(ctx context.Context) ([]export.Record, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    q.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", q.opts.Stream, err)
	}

	var records []export.Record
	for _, s := range streams {
		for _, msg := range s.Messages {
			body, _ := msg.Values["body"].(string)
			records = append(records, export.Record{MessageID: msg.ID, Body: body})
		}
	}
	return records, nil
}

// Ack acknowledges processed records.
func (q *RedisQueue) Ack(ctx context.Context, records []export.Record) error {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.MessageID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := q.rdb.XAck(ctx, q.opts.Stream, q.opts.Group, ids...).Err(); err != nil {
		return fmt.Errorf("ack %v on %s: %w", ids, q.opts.Stream, err)
	}
	return nil
}

func (q *RedisQueue) dedupKey(group, id string) string {
	return dedupKeyPrefix + q.opts.Stream + ":" + group + ":" + id
}
