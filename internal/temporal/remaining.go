package temporal

import (
	"fmt"
	"time"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Breakdown is target-now split into calendar-ish units. Days carries the
// sign; the other parts are always within [0, unit).
type Breakdown struct {
	Days        int64
	Hours       int64
	Minutes     int64
	Seconds     int64
	TotalMillis int64
}

// Remaining decomposes target-now. Negative durations (past due) are not
// special-cased.
func Remaining(target, now time.Time) Breakdown {
	total := target.Sub(now).Milliseconds()
	return Breakdown{
		Days:        floorDiv(total, msPerDay),
		Hours:       floorMod(floorDiv(total, msPerHour), 24),
		Minutes:     floorMod(floorDiv(total, msPerMinute), 60),
		Seconds:     floorMod(floorDiv(total, msPerSecond), 60),
		TotalMillis: total,
	}
}

func (b Breakdown) PastDue() bool {
	return b.TotalMillis < 0
}

func (b Breakdown) String() string {
	return fmt.Sprintf("%dd %dh %dm remain", b.Days, b.Hours, b.Minutes)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
