// Package ticks converts wall-clock timestamps into MDM ticks:
// 100-nanosecond intervals since 1601-01-01T00:00:00Z.
package ticks

import (
	"fmt"
	"time"

	"github.com/and161185/mdm-forwarder/internal/errs"
)

const perSecond = 10_000_000

var winEpochTicks = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC).Unix() * perSecond

// FromTime returns the tick count of t.
func FromTime(t time.Time) int64 {
	return t.Unix()*perSecond + int64(t.Nanosecond()/100) - winEpochTicks
}

// FromString parses an RFC 3339 timestamp such as "2016-06-28T21:58:24.677Z"
// and returns its tick count.
func FromString(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", errs.ErrMalformedTimestamp, s, err)
	}
	return FromTime(t.UTC()), nil
}
