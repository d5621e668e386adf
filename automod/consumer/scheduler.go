package consumer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wardenchat/warden/automod/engine"

	"golang.org/x/sync/semaphore"
)

const DefaultMaxQueue = 1024

// Runs message work on a fixed number of workers. Work items with the same key are handled one at a time, in the order they were added; items with different keys run in parallel.
type scheduler struct {
	workers int

	do func(context.Context, *task)

	// bounds queued plus running items; AddWork blocks when full
	queue     *semaphore.Weighted
	queueSize int64

	feeder chan *task
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*task

	log *slog.Logger
}

type task struct {
	key  string
	seq  int64
	evt  *engine.MessageEvent
	stop bool
}

func newScheduler(workers, maxQueue int, logger *slog.Logger, do func(context.Context, *task)) *scheduler {
	if maxQueue < workers {
		maxQueue = workers
	}
	s := &scheduler{
		workers:   workers,
		do:        do,
		queue:     semaphore.NewWeighted(int64(maxQueue)),
		queueSize: int64(maxQueue),
		feeder:    make(chan *task),
		out:       make(chan struct{}),
		active:    make(map[string][]*task),
		log:       logger,
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// per-author key; message order matters only within one author's stream in one tenant
func schedulerKey(evt *engine.MessageEvent) string {
	return evt.TenantID + "/" + evt.AuthorID
}

func (s *scheduler) AddWork(ctx context.Context, seq int64, evt *engine.MessageEvent) error {
	if err := s.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	t := &task{
		key: schedulerKey(evt),
		seq: seq,
		evt: evt,
	}

	s.lk.Lock()
	if pending, ok := s.active[t.key]; ok {
		s.active[t.key] = append(pending, t)
		s.lk.Unlock()
		return nil
	}
	s.active[t.key] = []*task{}
	s.lk.Unlock()

	select {
	case s.feeder <- t:
		return nil
	case <-ctx.Done():
		// a worker never saw the key, so nothing else will be queued behind it
		s.lk.Lock()
		pending := s.active[t.key]
		delete(s.active, t.key)
		s.lk.Unlock()
		s.queue.Release(int64(1 + len(pending)))
		return ctx.Err()
	}
}

// Waits for all queued work to finish, then stops the workers.
func (s *scheduler) Shutdown() {
	if err := s.queue.Acquire(context.Background(), s.queueSize); err != nil {
		s.log.Error("failed to drain message queue", "err", err)
	}
	for i := 0; i < s.workers; i++ {
		s.feeder <- &task{stop: true}
	}
	close(s.feeder)
	for i := 0; i < s.workers; i++ {
		<-s.out
	}
}

func (s *scheduler) worker() {
	for work := range s.feeder {
		for work != nil {
			if work.stop {
				s.out <- struct{}{}
				return
			}

			s.do(context.Background(), work)
			s.queue.Release(1)

			s.lk.Lock()
			rem, ok := s.active[work.key]
			if !ok {
				s.log.Error("missing active entry for a key being processed", "key", work.key)
			}
			if len(rem) == 0 {
				delete(s.active, work.key)
				work = nil
			} else {
				work = rem[0]
				s.active[work.key] = rem[1:]
			}
			s.lk.Unlock()
		}
	}
}
