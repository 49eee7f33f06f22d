package monitor

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Service runs a Worker in its own goroutine.
type Service struct {
	sync.Mutex

	worker  *Worker
	running *atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger *logrus.Entry
}

// NewService ...
func NewService(worker *Worker, logger *logrus.Entry) *Service {
	return &Service{
		worker:  worker,
		running: atomic.NewBool(false),
		logger:  logger,
	}
}

// Worker ...
func (s *Service) Worker() *Worker {
	return s.worker
}

// Start spawns the worker. It is a no-op when the worker is running.
func (s *Service) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		defer s.running.Store(false)

		if err := s.worker.Run(ctx); err != nil && err != context.Canceled {
			s.logger.WithError(err).Error("Monitor worker failed")
		}
	}(s.done)

	return nil
}

// Stop cancels the worker and waits for it to return.
func (s *Service) Stop() error {
	s.Lock()
	defer s.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done

	s.cancel = nil
	s.done = nil

	return nil
}

// IsRunning is true while the worker goroutine lives.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}
