package worker

import (
	"context"
	"errors"
	"sync"

	"void-ai-chat/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("serial writer closed")

// Serial runs at most one task per key at a time. A task submitted while its key
// is busy replaces whatever is still waiting for that key, so only the most
// recent one runs next. Submit never blocks.
type Serial struct {
	ctx context.Context
	log *zerolog.Logger

	mu      sync.Mutex
	pending map[string]Task
	running map[string]bool
	closed  bool
	wg      sync.WaitGroup
}

// NewSerial detaches task contexts from ctx cancellation so a shutdown still
// lets queued writes land; Close waits for them.
func NewSerial(ctx context.Context, log *zerolog.Logger) *Serial {
	return &Serial{
		ctx:     context.WithoutCancel(ctx),
		log:     log,
		pending: make(map[string]Task),
		running: make(map[string]bool),
	}
}

func (s *Serial) Submit(key string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running[key] {
		if s.pending[key] != nil {
			metrics.IncStorageWrite(key, "coalesced")
		}
		s.pending[key] = task
		s.mu.Unlock()
		return nil
	}
	s.running[key] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(key, task)
	return nil
}

func (s *Serial) run(key string, task Task) {
	defer s.wg.Done()
	for task != nil {
		if err := task(s.ctx); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("serial task failed")
		} else {
			metrics.IncStorageWrite(key, "written")
		}

		s.mu.Lock()
		task = s.pending[key]
		delete(s.pending, key)
		if task == nil {
			delete(s.running, key)
		}
		s.mu.Unlock()
	}
}

// Close rejects new tasks and waits until every key has drained.
func (s *Serial) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
