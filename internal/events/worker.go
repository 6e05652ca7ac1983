package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Handler reacts to decoded funnel events.
type Handler interface {
	HandleLeadCreated(ctx context.Context, evt LeadCreatedV1) error
	HandlePaymentRecorded(ctx context.Context, evt PaymentRecordedV1) error
}

type claimStore interface {
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

const (
	defaultWorkerCount  = 1
	defaultWaitSeconds  = 10
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
)

type workerConfig struct {
	workers     int
	waitSeconds int
	batchSize   int
	consumer    string
	processed   claimStore
}

type WorkerOption func(*workerConfig)

func WithWorkerCount(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.waitSeconds = seconds
	}
}

func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.batchSize = size
	}
}

// WithProcessedStore enables per-consumer de-duplication.
func WithProcessedStore(consumer string, store claimStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.consumer = consumer
		cfg.processed = store
	}
}

// Worker drains the event queue and dispatches to a Handler.
type Worker struct {
	queue   Queue
	handler Handler
	logger  *logging.Logger
	cfg     workerConfig
	wg      sync.WaitGroup
}

func NewWorker(queue Queue, handler Handler, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil || handler == nil {
		panic("events: queue and handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:     defaultWorkerCount,
		waitSeconds: defaultWaitSeconds,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, handler: handler, logger: logger, cfg: cfg}
}

func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("event worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.batchSize, w.cfg.waitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive events", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage deletes the message on success or on a poison payload.
// Handler errors leave it on the queue for redelivery.
func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	env, err := decodeEnvelope(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable event", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if w.cfg.processed != nil {
		fresh, err := w.cfg.processed.Claim(ctx, w.cfg.consumer, env.ID)
		if err != nil {
			w.logger.Error("failed to claim event", "error", err, "event_id", env.ID)
			return
		}
		if !fresh {
			w.logger.Info("skipping duplicate event", "event_id", env.ID, "kind", env.Kind)
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	if err := w.dispatch(ctx, env); err != nil {
		w.logger.Error("event handler failed", "error", err, "event_id", env.ID, "kind", env.Kind)
		if w.cfg.processed != nil {
			if relErr := w.cfg.processed.Release(context.WithoutCancel(ctx), w.cfg.consumer, env.ID); relErr != nil {
				w.logger.Warn("failed to release event claim", "error", relErr, "event_id", env.ID)
			}
		}
		return
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) dispatch(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case KindLeadCreated:
		return w.handler.HandleLeadCreated(ctx, *env.LeadCreated)
	case KindPaymentRecorded:
		return w.handler.HandlePaymentRecorded(ctx, *env.PaymentRecorded)
	default:
		return fmt.Errorf("events: unhandled kind %q", env.Kind)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete event message", "error", err)
	}
}
