// Bounded, per-author message history and violation counters, with time-based eviction.
//
// State is keyed by (tenant, author). Each author keeps a small ring of recent message observations (used by the time-window spam rules) and, separately, a violation counter used for punishment escalation. Both are swept periodically so memory stays bounded no matter how many authors are seen.
package history

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spaolacci/murmur3"
)

const (
	DefaultMaxObservations = 10
	DefaultMaxAge          = 24 * time.Hour
	DefaultViolationMaxAge = 7 * 24 * time.Hour
	DefaultSweepInterval   = time.Hour

	lockStripes = 256
)

// A single message, as remembered for the spam rules.
type Observation struct {
	At        time.Time
	ChannelID string
	// normalized (lower-cased, trimmed) message text, possibly truncated
	Content string
	// hash of the full normalized text; used for equality checks
	ContentHash string
}

type Options struct {
	// ring size per author; oldest observations are evicted first
	MaxObservations int
	// observations older than this are removed by Cleanup
	MaxAge time.Duration
	// violation counters with no new violation for this long are removed by Cleanup
	ViolationMaxAge time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxObservations: DefaultMaxObservations,
		MaxAge:          DefaultMaxAge,
		ViolationMaxAge: DefaultViolationMaxAge,
	}
}

type authorMessages struct {
	mu  sync.Mutex
	obs []Observation
	// set when the entry has been removed from the map; writers holding a stale pointer must retry
	dead bool
}

type violationRecord struct {
	mu    sync.Mutex
	count int
	last  time.Time
	dead  bool
}

type Store struct {
	opts       Options
	messages   *xsync.MapOf[string, *authorMessages]
	violations *xsync.MapOf[string, *violationRecord]
	stripes    [lockStripes]sync.Mutex
}

func NewStore(opts Options) *Store {
	def := DefaultOptions()
	if opts.MaxObservations <= 0 {
		opts.MaxObservations = def.MaxObservations
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = def.MaxAge
	}
	if opts.ViolationMaxAge <= 0 {
		opts.ViolationMaxAge = def.ViolationMaxAge
	}
	return &Store{
		opts:       opts,
		messages:   xsync.NewMapOf[string, *authorMessages](),
		violations: xsync.NewMapOf[string, *violationRecord](),
	}
}

func (s *Store) Options() Options {
	return s.opts
}

// tenant and author IDs are platform snowflakes or similar; a separator which can't occur in either keeps keys unambiguous
func authorKey(tenantID, authorID string) string {
	return fmt.Sprintf("%s\x00%s", tenantID, authorID)
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

// Acquires the striped lock for an author, returning the unlock function.
//
// Callers use this to make a read-modify-write sequence (record, evaluate rules, count violation) atomic with respect to other messages from the same author. Different authors rarely share a stripe.
func (s *Store) Lock(tenantID, authorID string) func() {
	idx := murmur3.Sum32([]byte(authorKey(tenantID, authorID))) % lockStripes
	mu := &s.stripes[idx]
	mu.Lock()
	return mu.Unlock
}

// Appends an observation for the author, evicting the oldest if the ring is full.
func (s *Store) Record(tenantID, authorID string, obs Observation) {
	key := authorKey(tenantID, authorID)
	for {
		am, _ := s.messages.LoadOrCompute(key, func() *authorMessages {
			return &authorMessages{obs: make([]Observation, 0, s.opts.MaxObservations)}
		})
		am.mu.Lock()
		if am.dead {
			// lost a race with Cleanup; the next LoadOrCompute creates a fresh entry
			am.mu.Unlock()
			continue
		}
		if len(am.obs) >= s.opts.MaxObservations {
			// shift in place to keep the backing array bounded
			n := copy(am.obs, am.obs[len(am.obs)-s.opts.MaxObservations+1:])
			am.obs = am.obs[:n]
		}
		am.obs = append(am.obs, obs)
		am.mu.Unlock()
		return
	}
}

// Returns a copy of the author's observations which are strictly newer than the cutoff, oldest first.
func (s *Store) Window(tenantID, authorID string, since time.Time) []Observation {
	am, ok := s.messages.Load(authorKey(tenantID, authorID))
	if !ok {
		return nil
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	out := make([]Observation, 0, len(am.obs))
	for _, o := range am.obs {
		if o.At.After(since) {
			out = append(out, o)
		}
	}
	return out
}

// Increments the author's violation counter, returning the new and previous counts.
//
// If resetAfter is positive and the author's last violation is older than that, the count starts over from zero before incrementing.
func (s *Store) IncrementViolations(tenantID, authorID string, now time.Time, resetAfter time.Duration) (int, int) {
	key := authorKey(tenantID, authorID)
	for {
		vr, _ := s.violations.LoadOrCompute(key, func() *violationRecord {
			return &violationRecord{}
		})
		vr.mu.Lock()
		if vr.dead {
			vr.mu.Unlock()
			continue
		}
		if resetAfter > 0 && vr.count > 0 && now.Sub(vr.last) > resetAfter {
			vr.count = 0
		}
		prev := vr.count
		vr.count++
		vr.last = now
		cur := vr.count
		vr.mu.Unlock()
		return cur, prev
	}
}

func (s *Store) Violations(tenantID, authorID string) int {
	vr, ok := s.violations.Load(authorKey(tenantID, authorID))
	if !ok {
		return 0
	}
	vr.mu.Lock()
	defer vr.mu.Unlock()
	if vr.dead {
		return 0
	}
	return vr.count
}

// Clears the author's violation counter in one tenant. Returns whether there was a counter to clear.
func (s *Store) ResetViolations(tenantID, authorID string) bool {
	return s.removeViolation(authorKey(tenantID, authorID))
}

func (s *Store) removeViolation(key string) bool {
	vr, ok := s.violations.LoadAndDelete(key)
	if !ok {
		return false
	}
	vr.mu.Lock()
	vr.dead = true
	vr.mu.Unlock()
	return true
}

// Clears the author's violation counters in every tenant. Returns whether any were cleared.
func (s *Store) ResetAuthor(authorID string) bool {
	var keys []string
	s.violations.Range(func(key string, _ *violationRecord) bool {
		if _, a := splitKey(key); a == authorID {
			keys = append(keys, key)
		}
		return true
	})
	found := false
	for _, key := range keys {
		if s.removeViolation(key) {
			found = true
		}
	}
	return found
}

// Sum of the author's violation counters across all tenants.
func (s *Store) AuthorViolations(authorID string) int {
	total := 0
	s.violations.Range(func(key string, vr *violationRecord) bool {
		if _, a := splitKey(key); a == authorID {
			vr.mu.Lock()
			if !vr.dead {
				total += vr.count
			}
			vr.mu.Unlock()
		}
		return true
	})
	return total
}

type Stats struct {
	TrackedAuthors   int `json:"trackedAuthors"`
	Observations     int `json:"observations"`
	ViolationRecords int `json:"violationRecords"`
	TotalViolations  int `json:"totalViolations"`
	// distinct authors (across tenants) with a positive violation count
	AuthorsWithViolations int `json:"authorsWithViolations"`
}

func (s *Store) Stats() Stats {
	var st Stats
	s.messages.Range(func(_ string, am *authorMessages) bool {
		am.mu.Lock()
		st.TrackedAuthors++
		st.Observations += len(am.obs)
		am.mu.Unlock()
		return true
	})
	authors := make(map[string]bool)
	s.violations.Range(func(key string, vr *violationRecord) bool {
		vr.mu.Lock()
		if vr.count > 0 {
			st.TotalViolations += vr.count
			_, a := splitKey(key)
			authors[a] = true
		}
		st.ViolationRecords++
		vr.mu.Unlock()
		return true
	})
	st.AuthorsWithViolations = len(authors)
	return st
}

type CleanupStats struct {
	ObservationsRemoved int           `json:"observationsRemoved"`
	AuthorsRemoved      int           `json:"authorsRemoved"`
	ViolationsRemoved   int           `json:"violationsRemoved"`
	Duration            time.Duration `json:"duration"`
}

// Removes observations older than MaxAge, authors with no remaining observations, and violation counters which are non-positive or inactive for longer than ViolationMaxAge.
//
// Takes a snapshot of keys first, then re-checks each entry under its own lock, so concurrent Record and IncrementViolations calls are never blocked for long and newer writes always win.
func (s *Store) Cleanup(now time.Time) CleanupStats {
	start := time.Now()
	var st CleanupStats

	msgCutoff := now.Add(-s.opts.MaxAge)
	var msgKeys []string
	s.messages.Range(func(key string, _ *authorMessages) bool {
		msgKeys = append(msgKeys, key)
		return true
	})
	for _, key := range msgKeys {
		s.messages.Compute(key, func(am *authorMessages, loaded bool) (*authorMessages, bool) {
			if !loaded {
				return am, true
			}
			am.mu.Lock()
			defer am.mu.Unlock()
			kept := am.obs[:0]
			for _, o := range am.obs {
				if o.At.After(msgCutoff) {
					kept = append(kept, o)
				}
			}
			st.ObservationsRemoved += len(am.obs) - len(kept)
			am.obs = kept
			if len(am.obs) == 0 {
				am.dead = true
				st.AuthorsRemoved++
				return am, true
			}
			return am, false
		})
	}

	vioCutoff := now.Add(-s.opts.ViolationMaxAge)
	var vioKeys []string
	s.violations.Range(func(key string, _ *violationRecord) bool {
		vioKeys = append(vioKeys, key)
		return true
	})
	for _, key := range vioKeys {
		s.violations.Compute(key, func(vr *violationRecord, loaded bool) (*violationRecord, bool) {
			if !loaded {
				return vr, true
			}
			vr.mu.Lock()
			defer vr.mu.Unlock()
			if vr.count <= 0 || vr.last.Before(vioCutoff) {
				vr.dead = true
				st.ViolationsRemoved++
				return vr, true
			}
			return vr, false
		})
	}
	st.Duration = time.Since(start)
	return st
}

// Drops all state.
func (s *Store) Clear() {
	s.messages.Range(func(key string, am *authorMessages) bool {
		am.mu.Lock()
		am.dead = true
		am.mu.Unlock()
		return true
	})
	s.messages.Clear()
	s.violations.Range(func(key string, vr *violationRecord) bool {
		vr.mu.Lock()
		vr.dead = true
		vr.mu.Unlock()
		return true
	})
	s.violations.Clear()
}

// Runs Cleanup on a fixed interval, on its own goroutine.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	// defaults to time.Now; set before Start
	Clock func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
		Clock:    time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (sw *Sweeper) Start() {
	go sw.run()
}

func (sw *Sweeper) run() {
	defer close(sw.done)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
			st := sw.store.Cleanup(sw.Clock())
			sweepRuns.Inc()
			sweepRemoved.WithLabelValues("observation").Add(float64(st.ObservationsRemoved))
			sweepRemoved.WithLabelValues("author").Add(float64(st.AuthorsRemoved))
			sweepRemoved.WithLabelValues("violation").Add(float64(st.ViolationsRemoved))
			sw.logger.Debug("history sweep complete",
				"observationsRemoved", st.ObservationsRemoved,
				"authorsRemoved", st.AuthorsRemoved,
				"violationsRemoved", st.ViolationsRemoved,
				"duration", st.Duration,
			)
		}
	}
}

// Signals the sweeper to exit. Does not wait for an in-progress sweep; see Wait. Safe to call more than once, and before Start.
func (sw *Sweeper) Stop() {
	sw.once.Do(func() {
		close(sw.stop)
	})
}

// Blocks until the sweeper goroutine has exited. Only meaningful after Start.
func (sw *Sweeper) Wait() {
	<-sw.done
}
