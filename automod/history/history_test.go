package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func obsAt(at time.Time, content string) Observation {
	return Observation{At: at, ChannelID: "chan1", Content: content, ContentHash: content}
}

func TestRecordCapNeverExceeded(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(Options{MaxObservations: 3})
	now := time.Now()
	for i := 0; i < 10; i++ {
		s.Record("g1", "u1", obsAt(now.Add(time.Duration(i)*time.Second), fmt.Sprintf("msg %d", i)))
		assert.LessOrEqual(len(s.Window("g1", "u1", time.Time{})), 3)
	}

	win := s.Window("g1", "u1", time.Time{})
	assert.Equal(3, len(win))
	// oldest evicted first
	assert.Equal("msg 7", win[0].Content)
	assert.Equal("msg 9", win[2].Content)

	// other tenants and authors are independent
	assert.Empty(s.Window("g2", "u1", time.Time{}))
	assert.Empty(s.Window("g1", "u2", time.Time{}))
}

func TestWindowStrictlyNewer(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(DefaultOptions())
	now := time.Now()
	s.Record("g1", "u1", obsAt(now.Add(-20*time.Second), "a"))
	s.Record("g1", "u1", obsAt(now.Add(-10*time.Second), "b"))
	s.Record("g1", "u1", obsAt(now, "c"))

	assert.Len(s.Window("g1", "u1", now.Add(-10*time.Second)), 1)
	assert.Len(s.Window("g1", "u1", now.Add(-11*time.Second)), 2)

	// returned slice is a copy
	win := s.Window("g1", "u1", time.Time{})
	win[0].Content = "changed"
	assert.Equal("a", s.Window("g1", "u1", time.Time{})[0].Content)
}

func TestViolationCounters(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(DefaultOptions())
	now := time.Now()

	cur, prev := s.IncrementViolations("g1", "u1", now, 0)
	assert.Equal(1, cur)
	assert.Equal(0, prev)
	cur, prev = s.IncrementViolations("g1", "u1", now, 0)
	assert.Equal(2, cur)
	assert.Equal(1, prev)
	s.IncrementViolations("g2", "u1", now, 0)

	assert.Equal(2, s.Violations("g1", "u1"))
	assert.Equal(3, s.AuthorViolations("u1"))
	assert.Equal(0, s.AuthorViolations("u2"))

	assert.True(s.ResetViolations("g2", "u1"))
	assert.False(s.ResetViolations("g2", "u1"))
	assert.Equal(2, s.AuthorViolations("u1"))

	assert.True(s.ResetAuthor("u1"))
	assert.False(s.ResetAuthor("u1"))
	assert.Equal(0, s.Violations("g1", "u1"))

	cur, _ = s.IncrementViolations("g1", "u1", now, 0)
	assert.Equal(1, cur)
}

func TestViolationDecay(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(DefaultOptions())
	now := time.Now()

	s.IncrementViolations("g1", "u1", now, time.Hour)
	s.IncrementViolations("g1", "u1", now.Add(30*time.Minute), time.Hour)
	cur, prev := s.IncrementViolations("g1", "u1", now.Add(89*time.Minute), time.Hour)
	assert.Equal(3, cur)
	assert.Equal(2, prev)

	// more than an hour since the last violation
	cur, prev = s.IncrementViolations("g1", "u1", now.Add(150*time.Minute), time.Hour)
	assert.Equal(1, cur)
	assert.Equal(0, prev)
}

func TestCleanup(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(Options{MaxAge: time.Hour, ViolationMaxAge: 24 * time.Hour})
	now := time.Now()

	s.Record("g1", "old", obsAt(now.Add(-2*time.Hour), "a"))
	s.Record("g1", "mixed", obsAt(now.Add(-2*time.Hour), "a"))
	s.Record("g1", "mixed", obsAt(now.Add(-time.Minute), "b"))
	s.IncrementViolations("g1", "stale", now.Add(-48*time.Hour), 0)
	s.IncrementViolations("g1", "fresh", now.Add(-time.Hour), 0)

	st := s.Cleanup(now)
	assert.Equal(2, st.ObservationsRemoved)
	assert.Equal(1, st.AuthorsRemoved)
	assert.Equal(1, st.ViolationsRemoved)

	assert.Empty(s.Window("g1", "old", time.Time{}))
	assert.Len(s.Window("g1", "mixed", time.Time{}), 1)
	assert.Equal(0, s.Violations("g1", "stale"))
	assert.Equal(1, s.Violations("g1", "fresh"))

	stats := s.Stats()
	assert.Equal(1, stats.TrackedAuthors)
	assert.Equal(1, stats.Observations)
	assert.Equal(1, stats.ViolationRecords)
	assert.Equal(1, stats.TotalViolations)
	assert.Equal(1, stats.AuthorsWithViolations)

	// recording after an author was swept creates a fresh entry
	s.Record("g1", "old", obsAt(now, "c"))
	assert.Len(s.Window("g1", "old", time.Time{}), 1)

	s.Clear()
	assert.Equal(Stats{}, s.Stats())
}

func TestConcurrentRecordAndCleanup(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(Options{MaxObservations: 5, MaxAge: time.Millisecond})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			author := fmt.Sprintf("u%d", w%3)
			for i := 0; i < 200; i++ {
				unlock := s.Lock("g1", author)
				s.Record("g1", author, obsAt(time.Now(), "x"))
				s.IncrementViolations("g1", author, time.Now(), 0)
				unlock()
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.Cleanup(time.Now())
		}
	}()
	wg.Wait()

	for w := 0; w < 3; w++ {
		assert.LessOrEqual(len(s.Window("g1", fmt.Sprintf("u%d", w), time.Time{})), 5)
	}
}

func TestSweeperStopIdempotent(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(Options{MaxAge: time.Millisecond})
	s.Record("g1", "u1", obsAt(time.Now().Add(-time.Second), "a"))

	sw := NewSweeper(s, 5*time.Millisecond, nil)
	sw.Start()
	assert.Eventually(func() bool {
		return s.Stats().TrackedAuthors == 0
	}, time.Second, 5*time.Millisecond)

	sw.Stop()
	sw.Stop()
	sw.Wait()
}

func TestSweeperUsesClock(t *testing.T) {
	assert := assert.New(t)

	s := NewStore(Options{MaxAge: time.Hour})
	s.Record("g1", "u1", obsAt(time.Now(), "a"))

	sw := NewSweeper(s, 5*time.Millisecond, nil)
	sw.Clock = func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}
	sw.Start()
	defer func() {
		sw.Stop()
		sw.Wait()
	}()

	// the observation is fresh by wall time, but old by the sweeper's clock
	assert.Eventually(func() bool {
		return s.Stats().TrackedAuthors == 0
	}, time.Second, 5*time.Millisecond)
}
