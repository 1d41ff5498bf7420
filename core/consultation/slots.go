package consultation

import (
	"sort"
	"time"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

type interval struct{ start, end int } // minutes since midnight

func (i interval) overlaps(o interval) bool {
	return i.start < o.end && o.start < i.end
}

// GenerateSlots lists the free increments of every day in [from, to].
//
// A rule opens its window on a day when its date is that day, or when it recurs on that weekday.
// Each window is cut into increments of the given length from its start; an increment not fitting
// wholly in the window is dropped. Increments overlapping an active booking of the day are excluded.
// Increments produced by overlapping rules are returned once. Slots are sorted by date then start.
func GenerateSlots(rules []AvailabilityRule, bookings []Booking, from, to time.Time, increment time.Duration) []Slot {
	step := int(increment / time.Minute)
	if step <= 0 {
		return []Slot{}
	}

	taken := make(map[string][]interval)
	for _, b := range bookings {
		if !isActive(b.Status) {
			continue
		}
		start, err1 := core.ParseClock(b.StartTime)
		end, err2 := core.ParseClock(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		taken[b.Date] = append(taken[b.Date], interval{start, end})
	}

	slots := make([]Slot, 0)
	from = truncateDay(from)
	to = truncateDay(to)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		date := day.Format(core.DateFormat)
		seen := make(map[int]bool)
		var starts []int

		for _, rule := range rules {
			if !rule.matches(day) {
				continue
			}
			wStart, err1 := core.ParseClock(rule.StartTime)
			wEnd, err2 := core.ParseClock(rule.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}
			for t := wStart; t+step <= wEnd; t += step {
				if seen[t] || overlapsAny(interval{t, t + step}, taken[date]) {
					continue
				}
				seen[t] = true
				starts = append(starts, t)
			}
		}

		sort.Ints(starts)
		for _, t := range starts {
			slots = append(slots, Slot{
				Date:      date,
				StartTime: core.FormatClock(t),
				EndTime:   core.FormatClock(t + step),
				Status:    SlotAvailable,
			})
		}
	}
	return slots
}

func overlapsAny(i interval, others []interval) bool {
	for _, o := range others {
		if i.overlaps(o) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
