package model

import (
	"sync"
	"time"
)

// TimestampLayout is fixed width, zero padded and always UTC, so comparing two
// stamps as strings orders them chronologically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CanonicalTimestamp rewrites any RFC 3339 value into TimestampLayout.
// Values that do not parse are returned unchanged.
func CanonicalTimestamp(s string) string {
	if s == "" {
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return FormatTimestamp(t)
}

// Newer reports whether stamp a supersedes stamp b. Empty sorts lowest and
// equal stamps never supersede.
func Newer(a, b string) bool {
	return a > b
}

// Clock hands out strictly increasing timestamps
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a clock reading time from now (time.Now when nil)
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the current time formatted with TimestampLayout, at least one
// microsecond after the previous call.
func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return FormatTimestamp(t)
}
