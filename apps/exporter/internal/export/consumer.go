package export

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Receiver pulls deliveries from the work queue.
type Receiver interface {
	// Receive blocks until a delivery is available or the queue's poll
	// interval elapses, in which case it returns no records.
	Receive(ctx context.Context) ([]Record, error)
	// Ack marks records as processed so they are not redelivered.
	Ack(ctx context.Context, records []Record) error
}

// Dispatcher handles one trigger event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Consumer feeds queue deliveries to a Dispatcher one at a time.
type Consumer struct {
	recv       Receiver
	dispatcher Dispatcher
	log        *slog.Logger
	backoff    time.Duration
}

// NewConsumer creates a Consumer. backoff is the pause after a receive error.
func NewConsumer(recv Receiver, dispatcher Dispatcher, log *slog.Logger, backoff time.Duration) *Consumer {
	return &Consumer{recv: recv, dispatcher: dispatcher, log: log, backoff: backoff}
}

// Run consumes until ctx is cancelled and returns once any in-flight record
// has been handled. Only new stream entries are read. Records are acked only
// after a successful dispatch; a failed record stays in the consumer group's
// pending list and is not retried here. Redrive it with XPENDING and XCLAIM
// (or XAUTOCLAIM) to another consumer, or re-send the language.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil //nolint:nilerr // cancellation is the normal way to stop
		}

		records, err := c.recv.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		if len(records) == 0 {
			continue
		}

		c.Handle(ctx, records)
	}
}

// Handle dispatches one delivery and acks its first record on success. Any
// further records were not processed and are left pending.
func (c *Consumer) Handle(ctx context.Context, records []Record) {
	if err := c.dispatcher.Dispatch(ctx, Event{Source: SourceQueue, Records: records}); err != nil {
		c.log.Error("export failed", "messageId", records[0].MessageID, "error", err)
		return
	}
	if err := c.recv.Ack(ctx, records[:1]); err != nil {
		c.log.Error("queue ack failed", "messageId", records[0].MessageID, "error", err)
	}
}
