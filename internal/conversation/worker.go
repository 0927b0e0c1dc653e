package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

// FollowupPoster delivers a deferred reply to the interactive channel's
// one-time callback URL.
type FollowupPoster interface {
	PostFollowup(ctx context.Context, applicationID, token, content string) error
}

// TurnProcessor is the pipeline entry point the worker re-enters in Phase 2,
// implemented by Service.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, msg InboundMessage) (TurnResult, error)
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	ackTimeoutSeconds   = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker is Phase 2 of the deferred-reply protocol: it consumes follow-up
// tasks from the queue, re-enters the pipeline, and posts the result back to
// the callback URL. A failed task is logged and dropped, never retried; the
// user simply receives no follow-up.
type Worker struct {
	processor TurnProcessor
	queue     followupQueue
	poster    FollowupPoster
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer around the provided processor.
func NewWorker(processor TurnProcessor, queue followupQueue, poster FollowupPoster, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if poster == nil {
		panic("conversation: follow-up poster cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		poster:    poster,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
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
	w.logger.Debug("follow-up worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("follow-up worker stopping", "worker_id", workerID)
			return
		default:
		}

		leases, err := w.queue.Dequeue(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive follow-up tasks", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, lease := range leases {
			w.handleTask(ctx, lease)
		}
	}
}

// handleTask runs one follow-up task. Every exit path acks the lease: the
// task is consumed at most once and a failure means the user gets no
// follow-up, by contract.
func (w *Worker) handleTask(ctx context.Context, lease leasedTask) {
	defer w.ack(lease.receipt)

	payload := lease.payload
	if payload.Kind != taskKindFollowup {
		w.logger.Error("unknown task kind", "kind", payload.Kind, "task_id", payload.ID)
		return
	}

	task := payload.Task
	if task.ReplyToken == "" || task.ApplicationID == "" {
		w.logger.Error("follow-up task missing callback identifiers", "task_id", payload.ID)
		return
	}

	result, err := w.processor.ProcessTurn(ctx, InboundMessage{
		Channel:       ChannelDiscord,
		SenderID:      task.UserID,
		Text:          task.Question,
		CorrelationID: payload.ID,
	})
	if err != nil {
		w.logger.Error("follow-up turn failed", "error", err, "task_id", payload.ID)
		return
	}

	if err := w.poster.PostFollowup(ctx, task.ApplicationID, task.ReplyToken, result.FinalText); err != nil {
		w.logger.Error("follow-up post failed", "error", err, "task_id", payload.ID)
	}
}

func (w *Worker) ack(receipt string) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Ack(ctx, receipt); err != nil {
		w.logger.Error("failed to ack follow-up task", "error", err)
	}
}
