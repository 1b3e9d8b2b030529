package reviews

import (
	"strconv"
	"strings"
	"time"
)

// parseRelativeDate converts Google's relative date strings ("a day ago",
// "3 weeks ago", "2 years ago") to an absolute time. Returns false for
// anything it cannot interpret.
func parseRelativeDate(text string) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) < 3 || fields[len(fields)-1] != "ago" {
		return time.Time{}, false
	}

	n := 1
	if fields[0] != "a" && fields[0] != "an" {
		v, err := strconv.Atoi(fields[0])
		if err != nil || v < 0 {
			return time.Time{}, false
		}
		n = v
	}

	now := time.Now().UTC()
	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second":
		return now.Add(-time.Duration(n) * time.Second), true
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
