package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mediswift/intake-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	deleteTimeoutSecond = 5
)

// Dispatcher decouples webhook receipt from engine processing: webhooks
// publish normalized inbound events onto a queue and workers drain it, so a
// slow dialogue call never blocks a channel's delivery retries.
type Dispatcher struct {
	queue  queueClient
	engine *Engine
	logger *logging.Logger

	workers   int
	waitSecs  int
	batchSize int

	wg sync.WaitGroup
}

// DispatcherOption customizes dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithWorkerCount sets how many goroutines drain the queue.
func WithWorkerCount(count int) DispatcherOption {
	return func(d *Dispatcher) {
		if count > 0 {
			d.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll duration.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(d *Dispatcher) {
		if seconds > 0 && seconds <= 20 {
			d.waitSecs = seconds
		}
	}
}

// NewDispatcher wires a dispatcher over the given queue and engine.
func NewDispatcher(queue queueClient, engine *Engine, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if queue == nil {
		panic("conversation: dispatcher requires a queue")
	}
	if engine == nil {
		panic("conversation: dispatcher requires an engine")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		queue:     queue,
		engine:    engine,
		logger:    logger,
		workers:   defaultWorkerCount,
		waitSecs:  defaultWaitSeconds,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues one inbound event for asynchronous processing.
func (d *Dispatcher) Publish(ctx context.Context, in Inbound) (string, error) {
	if in.Identity == "" {
		return "", fmt.Errorf("conversation: cannot publish event without identity")
	}
	payload, body, err := encodePayload(queuePayload{Inbound: in})
	if err != nil {
		return "", err
	}
	if err := d.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("conversation: failed to publish inbound event: %w", err)
	}
	return payload.ID, nil
}

// Start launches the worker goroutines. They run until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i+1)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, workerID int) {
	defer d.wg.Done()
	d.logger.Debug("inbound worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("inbound worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(ctx, d.batchSize, d.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive inbound events", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleMessage(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		d.logger.Error("dropping malformed inbound payload", "message_id", msg.ID, "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	result, err := d.engine.HandleInbound(ctx, payload.Inbound)
	if err != nil {
		d.logger.Error("inbound event processing failed",
			"message_id", msg.ID,
			"identity", payload.Inbound.Identity,
			"error", err,
		)
		// The failure was surfaced to the user already; redelivery would
		// double-send, so the message is still deleted.
	} else {
		d.logger.Debug("inbound event processed",
			"message_id", msg.ID,
			"identity", payload.Inbound.Identity,
			"outcome", string(result.Outcome),
		)
	}
	d.deleteMessage(msg.ReceiptHandle)
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSecond*time.Second)
	defer cancel()
	if err := d.queue.Delete(ctx, receiptHandle); err != nil {
		d.logger.Error("failed to delete processed message", "error", err)
	}
}
