package rendering

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/cv-publisher/internal/types"
)

var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatDate turns "2023-03" into "Mar 2023". Values that do not parse are
// returned unchanged.
func FormatDate(value string) string {
	if value == "" {
		return ""
	}
	year, month, ok := strings.Cut(value, "-")
	if !ok || year == "" || month == "" {
		return value
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return value
	}
	return monthNames[m-1] + " " + year
}

// FormatDateRange returns "Mar 2021 - Jun 2022" or "Mar 2023 - Now".
func FormatDateRange(dates types.DateRange) string {
	start := FormatDate(dates.StartDate)
	if dates.Current {
		return start + " - Now"
	}
	return start + " - " + FormatDate(dates.EndDate)
}

type interval struct {
	start, end time.Time
}

func parseMonth(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01", value)
	return t, err == nil
}

// TotalYears sums the experience covered by ranges, merging overlapping
// periods, and formats it as "< 1 year", "1 year", "1+ years", "N years" or
// "N+ years". Current ranges end at now.
func TotalYears(ranges []types.DateRange, now time.Time) string {
	intervals := make([]interval, 0, len(ranges))
	for _, r := range ranges {
		start, ok := parseMonth(r.StartDate)
		if !ok {
			continue
		}
		var end time.Time
		switch {
		case r.Current:
			end = now
		case r.EndDate != "":
			if end, ok = parseMonth(r.EndDate); !ok {
				continue
			}
		default:
			continue
		}
		intervals = append(intervals, interval{start, end})
	}
	if len(intervals) == 0 {
		return "< 1 year"
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start.Before(intervals[j].start) })

	merged := []interval{intervals[0]}
	for _, cur := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !cur.start.After(last.end) {
			if cur.end.After(last.end) {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}

	months := 0
	for _, iv := range merged {
		diff := (iv.end.Year()-iv.start.Year())*12 + int(iv.end.Month()) - int(iv.start.Month())
		if diff > 0 {
			months += diff
		}
	}

	years, rest := months/12, months%12
	switch {
	case years == 0:
		return "< 1 year"
	case years == 1 && rest > 0:
		return "1+ years"
	case years == 1:
		return "1 year"
	case rest > 0:
		return fmt.Sprintf("%d+ years", years)
	default:
		return fmt.Sprintf("%d years", years)
	}
}
