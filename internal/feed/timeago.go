package feed

import (
	"fmt"
	"time"
)

// RelativeTime describes t relative to now ("5 minutes ago"). Times more than
// a week back are shown as a date. Future times count as "just now".
func RelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	if d < time.Second {
		return "just now"
	}

	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case seconds < 60:
		return plural(seconds, "second")
	case minutes < 60:
		return plural(minutes, "minute")
	case hours < 24:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	default:
		return t.In(now.Location()).Format("2006-01-02")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
