package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppbot/internal/bus"
	"go.uber.org/zap"
)

// Writer is the remote document store the outbox drains into.
type Writer interface {
	Set(ctx context.Context, path string, value any) error
}

// Op is one queued remote write. A nil Value deletes the path.
type Op struct {
	ID    string
	Path  string
	Value any
	// OnSuccess runs once the write lands.
	OnSuccess func()
	// OnFailure runs once the write has been given up on, so the caller can
	// revert its optimistic local change.
	OnFailure func(err error)
}

// Failure is the payload of bus.OutboxFailed.
type Failure struct {
	ID       string
	Path     string
	Attempts int
	Err      error
}

// Options tune retry behaviour.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// DefaultOptions retries three times starting at 200ms.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, Backoff: 200 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("outbox stopped")

// Sender drains queued writes in order, retrying each with backoff before
// giving up and running its compensation.
type Sender struct {
	writer Writer
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	mu      sync.Mutex
	queue   []Op
	busy    bool
	stopped bool
	changed chan struct{}

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates an outbox sender writing through w.
func NewSender(w Writer, b *bus.Bus, logger *zap.Logger, opts Options) *Sender {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if b == nil {
		b = bus.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		writer:  w,
		bus:     b,
		logger:  logger,
		opts:    opts,
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop halts the loop. Writes still queued are dropped without compensation.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.stopped = true
	dropped := len(s.queue)
	s.queue = nil
	s.notifyLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if dropped > 0 {
		s.logger.Warn("outbox stopped with pending writes", zap.Int("dropped", dropped))
	}
}

// Enqueue queues op and returns its id.
func (s *Sender) Enqueue(op Op) (string, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrStopped
	}
	s.queue = append(s.queue, op)
	s.notifyLocked()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return op.ID, nil
}

// Pending returns the number of writes not yet settled.
func (s *Sender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.busy {
		n++
	}
	return n
}

// Flush blocks until every queued write has settled or ctx ends.
func (s *Sender) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := len(s.queue) == 0 && !s.busy
		changed := s.changed
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sender) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		op, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		s.process(ctx, op)

		s.mu.Lock()
		s.busy = false
		s.notifyLocked()
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Sender) next() (Op, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Op{}, false
	}
	op := s.queue[0]
	s.queue = s.queue[1:]
	s.busy = true
	return op, true
}

func (s *Sender) process(ctx context.Context, op Op) {
	var err error
	backoff := s.opts.Backoff
	attempt := 0
	for attempt < s.opts.MaxAttempts {
		attempt++
		if err = s.writer.Set(ctx, op.Path, op.Value); err == nil {
			s.logger.Debug("outbox write flushed", zap.String("id", op.ID), zap.String("path", op.Path), zap.Int("attempt", attempt))
			if op.OnSuccess != nil {
				op.OnSuccess()
			}
			return
		}
		s.logger.Warn("outbox write failed",
			zap.String("id", op.ID),
			zap.String("path", op.Path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == s.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			s.logger.Warn("outbox write abandoned on shutdown", zap.String("id", op.ID))
			if op.OnFailure != nil {
				op.OnFailure(ctx.Err())
			}
			return
		}
		backoff *= 2
		if s.opts.MaxBackoff > 0 && backoff > s.opts.MaxBackoff {
			backoff = s.opts.MaxBackoff
		}
	}

	s.logger.Error("outbox write gave up", zap.String("id", op.ID), zap.String("path", op.Path), zap.Error(err))
	if op.OnFailure != nil {
		op.OnFailure(err)
	}
	s.bus.Emit(bus.OutboxFailed, Failure{ID: op.ID, Path: op.Path, Attempts: attempt, Err: err})
}
