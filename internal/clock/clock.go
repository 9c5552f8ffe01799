// Package clock provides the monotonic event/alert id sequence and the UTC
// timestamp source shared across the pipeline.
package clock

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Clock allocates process-wide unique event/alert ids and reports the
// current time as RFC 3339 UTC. The zero value is ready to use and behaves
// like a Clock returned by New.
type Clock struct {
	seq uint64
}

// New returns a Clock whose id sequence starts at 1.
func New() *Clock {
	return &Clock{}
}

// NextEventID returns the next id in the shared sequence, formatted as
// "e<N>".
func (c *Clock) NextEventID() string {
	return "e" + strconv.FormatUint(c.next(), 10)
}

// NextAlertID returns the next id in the shared sequence, formatted as
// "a<N>". Event and alert ids are drawn from the same counter so that every
// id is unique process-wide, per spec.
func (c *Clock) NextAlertID() string {
	return "a" + strconv.FormatUint(c.next(), 10)
}

func (c *Clock) next() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

// NowISO returns the current time formatted as RFC 3339 in UTC.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
