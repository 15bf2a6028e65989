package cachestore

import (
	"fmt"
	"time"
)

// FormatAge renders the elapsed time since lastUpdatedMs as the display
// bucket the UI shows next to cached data: "just now" under a minute, then
// whole minutes, hours, and days. Future or zero timestamps render as
// "just now" rather than a negative age.
func FormatAge(lastUpdatedMs, nowMs int64) string {
	elapsed := nowMs - lastUpdatedMs
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < 60_000:
		return "just now"
	case elapsed < 3_600_000:
		m := elapsed / 60_000
		return fmt.Sprintf("%d %s ago", m, plural(m, "minute"))
	case elapsed < 86_400_000:
		h := elapsed / 3_600_000
		return fmt.Sprintf("%d %s ago", h, plural(h, "hour"))
	default:
		d := elapsed / 86_400_000
		return fmt.Sprintf("%d %s ago", d, plural(d, "day"))
	}
}

// FormatAgeNow is FormatAge against the current wall clock, for callers
// driving a live ticking display.
func FormatAgeNow(lastUpdatedMs int64) string {
	return FormatAge(lastUpdatedMs, time.Now().UnixMilli())
}

func plural(n int64, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
