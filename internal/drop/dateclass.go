package drop

import (
	"sort"
	"time"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	// DateLabelLayout formats labels for entries older than yesterday,
	// e.g. "November 08, 2025".
	DateLabelLayout = "January 02, 2006"
)

// Classify maps ts to a recency label by comparing calendar dates, not
// instants, in now's location.
func Classify(ts, now time.Time) string {
	loc := now.Location()
	local := ts.In(loc)
	day := dateOf(local)
	today := dateOf(now)

	switch day {
	case today:
		return LabelToday
	case today.prev(loc):
		return LabelYesterday
	default:
		return local.Format(DateLabelLayout)
	}
}

type calendarDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) calendarDate {
	y, m, d := t.Date()
	return calendarDate{y, m, d}
}

// prev anchors at noon so a DST jump at midnight cannot shift the day.
func (c calendarDate) prev(loc *time.Location) calendarDate {
	return dateOf(time.Date(c.year, c.month, c.day-1, 12, 0, 0, 0, loc))
}

// labelRank orders labels: Today, Yesterday, parseable dates, then anything else.
func labelRank(label string) (int, time.Time) {
	switch label {
	case LabelToday:
		return 0, time.Time{}
	case LabelYesterday:
		return 1, time.Time{}
	}
	if t, err := time.Parse(DateLabelLayout, label); err == nil {
		return 2, t
	}
	return 3, time.Time{}
}

// SortLabels orders bucket labels in place: Today first, Yesterday second,
// dated labels newest first, and labels that do not parse as a date last in
// lexical order.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		ri, ti := labelRank(labels[i])
		rj, tj := labelRank(labels[j])
		if ri != rj {
			return ri < rj
		}
		switch ri {
		case 2:
			return ti.After(tj)
		case 3:
			return labels[i] < labels[j]
		}
		return false
	})
}
