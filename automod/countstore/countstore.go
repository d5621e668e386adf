// Aggregate moderation counters, bucketed by time period.
//
// Counters are named by a namespace ("name") and a value within it ("val"); every increment lands in the all-time, current-day, and current-hour buckets. "Distinct" counters estimate how many different members were added to a bucket.
//
// The engine records everything a single verdict touches as one batch (IncrementMany), so a redis backend pays one round trip per moderated message.
package countstore

import (
	"context"
	"fmt"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// Every period a counter is recorded in, with how long the bucket needs to be kept (zero is forever).
var periods = []struct {
	name string
	keep time.Duration
}{
	{PeriodHour, 2 * time.Hour},
	{PeriodDay, 48 * time.Hour},
	{PeriodTotal, 0},
}

// One counter bump in a batch.
type Counter struct {
	Name string
	Val  string
	// when set, Member is added to the distinct set of the Val bucket instead of bumping a count
	Member string
}

func (c Counter) Distinct() bool {
	return c.Member != ""
}

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementMany(ctx context.Context, counters []Counter) error
}

func ValidPeriod(period string) bool {
	for _, p := range periods {
		if p.name == period {
			return true
		}
	}
	return false
}

func periodBucket(name, val, period string, now time.Time) (string, error) {
	now = now.UTC()
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val), nil
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.DateOnly)), nil
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format("2006-01-02T15")), nil
	default:
		return "", fmt.Errorf("unknown counter period: %q", period)
	}
}
