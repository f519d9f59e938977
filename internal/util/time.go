package util

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DateFormat is the standard date format for records.
	DateFormat = "2006-01-02"

	// DateTimeFormat is the standard datetime format for display.
	DateTimeFormat = "2006-01-02 15:04:05"

	// ISO8601Format is the RFC3339 format used in configuration and APIs.
	ISO8601Format = time.RFC3339
)

// Clock supplies the current time. Monitors and stages read time only
// through a Clock so tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SimClock is a scaled clock for demos and load simulation.
// 1.0 = real-time, 60.0 = 1 real minute = 1 simulated hour.
type SimClock struct {
	mu sync.RWMutex

	startRealTime time.Time
	startSimTime  time.Time
	timeScale     float64

	paused   bool
	pausedAt time.Time
}

// NewSimClock creates a new simulated clock starting at the given time.
func NewSimClock(start time.Time, timeScale float64) *SimClock {
	return &SimClock{
		startRealTime: time.Now(),
		startSimTime:  start.UTC(),
		timeScale:     timeScale,
	}
}

// Now returns the current simulated time.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

func (c *SimClock) now() time.Time {
	if c.paused {
		return c.pausedAt
	}
	elapsed := time.Duration(float64(time.Since(c.startRealTime)) * c.timeScale)
	return c.startSimTime.Add(elapsed)
}

// Pause stops time progression.
func (c *SimClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.pausedAt = c.now()
		c.paused = true
	}
}

// Resume continues time progression.
func (c *SimClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.startRealTime = time.Now()
		c.startSimTime = c.pausedAt
		c.paused = false
	}
}

// IsPaused returns true if the clock is paused.
func (c *SimClock) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// SetTimeScale changes the time scaling factor.
func (c *SimClock) SetTimeScale(scale float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.now()
	c.startRealTime = time.Now()
	c.startSimTime = current
	c.timeScale = scale
	if c.paused {
		c.pausedAt = current
	}
}

// TimeScale returns the current time scale.
func (c *SimClock) TimeScale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeScale
}

// Advance moves simulated time forward. Only works when paused.
func (c *SimClock) Advance(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return fmt.Errorf("cannot advance time while running; pause first")
	}
	c.pausedAt = c.pausedAt.Add(d)
	return nil
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock returns a clock fixed at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t.UTC()}
}

// Now returns the pinned time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set pins the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// FormatDate formats a time as a date string.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// FormatDateTime formats a time as a datetime string.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}

// FormatISO8601 formats a time as an ISO8601/RFC3339 string.
func FormatISO8601(t time.Time) string {
	return t.Format(ISO8601Format)
}

// ParseISO8601 parses an ISO8601/RFC3339 string.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(ISO8601Format, s)
}

// IsSameDay checks if two times are on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// StartOfDay returns midnight of the given day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextAt returns the first time strictly after now whose hour is hour,
// at minute zero, in now's location.
func NextAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RelativeTimeString returns a human-readable relative time string.
func RelativeTimeString(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return futureTimeString(-diff)
	}
	return pastTimeString(diff)
}

func pastTimeString(diff time.Duration) string {
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 48*time.Hour:
		return "yesterday"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func futureTimeString(diff time.Duration) string {
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return "in " + plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return "in " + plural(int(diff.Hours()), "hour")
	default:
		return "in " + plural(int(diff.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
