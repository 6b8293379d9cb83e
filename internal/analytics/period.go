package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/store"
)

// ErrInvalidPeriod is returned for a period outside the supported set.
var ErrInvalidPeriod = errors.New("invalid period")

// Period is a symbolic window ending now.
type Period string

const (
	PeriodHour  Period = "1h"
	PeriodDay   Period = "1d"
	PeriodWeek  Period = "7d"
	PeriodMonth Period = "30d"
	PeriodAll   Period = "all"
)

// Periods lists the supported periods, shortest first.
var Periods = []Period{PeriodHour, PeriodDay, PeriodWeek, PeriodMonth, PeriodAll}

// ParsePeriod validates s.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodHour, PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q: must be one of 1h, 1d, 7d, 30d, all", ErrInvalidPeriod, s)
	}
}

// Duration is the window length, zero for PeriodAll.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Range resolves the period to [now-d, now]. PeriodAll has no lower bound.
func (p Period) Range(now time.Time) store.Range {
	r := store.Range{End: now}
	if d := p.Duration(); d > 0 {
		r.Start = now.Add(-d)
	}
	return r
}

func (p Period) String() string { return string(p) }
