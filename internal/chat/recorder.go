package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/chatgate/internal/models"
)

var errNoStore = errors.New("chat: no conversation store")

type ConversationWriter interface {
	InsertConversation(ctx context.Context, userMessage, assistantMessage string) (models.ConversationRecord, error)
}

type RecorderOptions struct {
	QueueSize     int
	Workers       int
	InsertTimeout time.Duration
}

type exchange struct {
	user      string
	assistant string
}

// BackgroundRecorder persists exchanges from a bounded queue drained by a
// fixed set of workers. Writes are attempted once; failures are logged and
// dropped.
type BackgroundRecorder struct {
	store  ConversationWriter
	opts   RecorderOptions
	logger *zap.Logger

	queue chan exchange
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewBackgroundRecorder(store ConversationWriter, opts RecorderOptions, logger *zap.Logger) *BackgroundRecorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.InsertTimeout <= 0 {
		opts.InsertTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BackgroundRecorder{
		store:  store,
		opts:   opts,
		logger: logger,
		queue:  make(chan exchange, opts.QueueSize),
	}
}

// Start launches the workers. Calling it more than once, or after Close, is
// a no-op.
func (r *BackgroundRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return
	}
	r.started = true

	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.run()
	}
}

// Record enqueues an exchange without blocking. When the queue is full or
// the recorder is closed the exchange is dropped.
func (r *BackgroundRecorder) Record(userMessage, assistantMessage string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("conversation dropped: recorder closed")
		return
	}

	select {
	case r.queue <- exchange{user: userMessage, assistant: assistantMessage}:
	default:
		r.logger.Warn("conversation dropped: recorder queue full", zap.Int("queue_size", r.opts.QueueSize))
	}
}

// Close stops accepting exchanges and waits for queued ones to be written,
// or for ctx to end.
func (r *BackgroundRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *BackgroundRecorder) run() {
	defer r.wg.Done()

	for ex := range r.queue {
		r.persist(ex)
	}
}

func (r *BackgroundRecorder) persist(ex exchange) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("conversation store panicked", zap.Any("panic", p))
		}
	}()

	if r.store == nil {
		r.logger.Warn("failed to store conversation", zap.Error(errNoStore))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.InsertTimeout)
	defer cancel()

	record, err := r.store.InsertConversation(ctx, ex.user, ex.assistant)
	if err != nil {
		r.logger.Warn("failed to store conversation", zap.Error(err))
		return
	}

	r.logger.Debug("conversation stored", zap.Int64("id", record.ID))
}
