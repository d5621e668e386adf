package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wardenchat/warden/automod/engine"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerPerAuthorOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var mu sync.Mutex
	order := map[string][]string{}
	sched := newScheduler(8, 64, slog.Default(), func(ctx context.Context, work *task) {
		// the first message of each author is the slowest
		if work.evt.MessageID == work.evt.AuthorID+"-0" {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		order[work.evt.AuthorID] = append(order[work.evt.AuthorID], work.evt.MessageID)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		for _, author := range []string{"u1", "u2", "u3"} {
			evt := engine.TestMessage("guild1", author, "hello")
			evt.MessageID = fmt.Sprintf("%s-%d", author, i)
			assert.NoError(sched.AddWork(ctx, int64(i), evt))
		}
	}
	sched.Shutdown()

	for _, author := range []string{"u1", "u2", "u3"} {
		assert.Equal([]string{author + "-0", author + "-1", author + "-2", author + "-3", author + "-4"}, order[author])
	}
}

func TestSchedulerAuthorsRunInParallel(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan string, 2)
	sched := newScheduler(2, 8, slog.Default(), func(ctx context.Context, work *task) {
		started <- work.evt.AuthorID
		<-release
	})

	assert.NoError(sched.AddWork(ctx, 1, engine.TestMessage("guild1", "u1", "a")))
	assert.NoError(sched.AddWork(ctx, 2, engine.TestMessage("guild1", "u2", "b")))
	// both authors are in progress at once
	got := []string{<-started, <-started}
	assert.ElementsMatch([]string{"u1", "u2"}, got)
	close(release)
	sched.Shutdown()
}

func TestSchedulerQueueLimit(t *testing.T) {
	assert := assert.New(t)

	release := make(chan struct{})
	sched := newScheduler(1, 2, slog.Default(), func(ctx context.Context, work *task) {
		<-release
	})

	assert.NoError(sched.AddWork(context.Background(), 1, engine.TestMessage("guild1", "u1", "a")))
	assert.NoError(sched.AddWork(context.Background(), 2, engine.TestMessage("guild1", "u1", "b")))

	// queue is full; the reader blocks until the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(sched.AddWork(ctx, 3, engine.TestMessage("guild1", "u1", "c")))

	close(release)
	sched.Shutdown()
}
