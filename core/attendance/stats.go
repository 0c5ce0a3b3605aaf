package attendance

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// day is a calendar date, stored as UTC midnight so that day arithmetic ignores DST.
type day time.Time

func toDay(t time.Time, loc *time.Location) day {
	t = t.In(loc)
	return day(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

func (d day) add(n int) day { return day(time.Time(d).AddDate(0, 0, n)) }
func (d day) weekday() time.Weekday { return time.Time(d).Weekday() }
func (d day) before(other day) bool { return time.Time(d).Before(time.Time(other)) }
func (d day) String() string { return time.Time(d).Format(dateLayout) }
func (d day) label() string { return time.Time(d).Format("Mon") }
func (d day) isWeekend() bool { return d.weekday() == time.Saturday || d.weekday() == time.Sunday }
func (d day) in(loc *time.Location) time.Time {
	t := time.Time(d)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// prevWeekday returns the closest weekday strictly before d.
func (d day) prevWeekday() day {
	prev := d.add(-1)
	for prev.isWeekend() {
		prev = prev.add(-1)
	}
	return prev
}

func monthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	d := toDay(t, loc)
	return d.add(-mondayOffset(d)).in(loc)
}

func mondayOffset(d day) int {
	return (int(d.weekday()) + 6) % 7
}

// attendedDays returns the set of days with at least one log.
func attendedDays(logs []Log, loc *time.Location) map[day]bool {
	days := make(map[day]bool, len(logs))
	for _, log := range logs {
		days[toDay(log.Timestamp, loc)] = true
	}
	return days
}

// Month summarizes logs over the month containing month.
// Weekdays of the month up to and including today count as absent when no log exists for them.
func Month(logs []Log, month, now time.Time, loc *time.Location) MonthSummary {
	start, end := monthBounds(month, loc)
	first, last := toDay(start, loc), toDay(end, loc)

	present := make(map[day]bool)
	for d := range attendedDays(logs, loc) {
		if !d.before(first) && d.before(last) {
			present[d] = true
		}
	}

	today := toDay(now, loc)
	var pastWeekdays int
	for d := first; d.before(last) && !today.before(d); d = d.add(1) {
		if !d.isWeekend() {
			pastWeekdays++
		}
	}

	summary := MonthSummary{
		Month:         time.Time(first).Format("2006-01"),
		PresentDays:   len(present),
		AttendedDates: make([]string, 0, len(present)),
	}
	if absent := pastWeekdays - len(present); absent > 0 {
		summary.AbsentDays = absent
	}
	if total := summary.PresentDays + summary.AbsentDays; total > 0 {
		summary.PresentPercentage = float64(summary.PresentDays) * 100 / float64(total)
	}
	for d := range present {
		summary.AttendedDates = append(summary.AttendedDates, d.String())
	}
	sort.Strings(summary.AttendedDates)
	return summary
}

// DayScans counts the logs of the given day.
func DayScans(logs []Log, t time.Time, loc *time.Location) int {
	target := toDay(t, loc)
	var count int
	for _, log := range logs {
		if toDay(log.Timestamp, loc) == target {
			count++
		}
	}
	return count
}

// Streaks computes the current & record streaks of logs along with this week's attendance.
// The current streak is anchored on today, or on the previous Friday during weekends,
// and is zero when the anchor day was not attended.
func Streaks(logs []Log, now time.Time, loc *time.Location) Streak {
	attended := attendedDays(logs, loc)
	today := toDay(now, loc)

	days := make([]day, 0, len(attended))
	for d := range attended {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].before(days[j]) })

	var streak Streak
	run := 0
	for i, d := range days {
		if i > 0 && days[i-1] == d.prevWeekday() {
			run++
		} else {
			run = 1
		}
		if run > streak.Record {
			streak.Record = run
		}
	}

	anchor := today
	switch today.weekday() {
	case time.Saturday:
		anchor = today.add(-1)
	case time.Sunday:
		anchor = today.add(-2)
	}
	for i := len(days) - 1; i >= 0; i-- {
		if days[i] != anchor {
			continue
		}
		streak.Current = 1
		for ; i > 0 && days[i-1] == days[i].prevWeekday(); i-- {
			streak.Current++
		}
		break
	}

	monday := today.add(-mondayOffset(today))
	for d := monday; !today.before(d); d = d.add(1) {
		streak.Week = append(streak.Week, WeekDay{Day: d.label(), Date: d.String(), Attended: attended[d]})
	}
	return streak
}

// Week counts logs per day of the week containing now, Monday to Sunday.
func Week(logs []Log, now time.Time, loc *time.Location) WeekChart {
	today := toDay(now, loc)
	monday := today.add(-mondayOffset(today))

	chart := WeekChart{Days: make([]WeekDayCount, 7)}
	for i := range chart.Days {
		d := monday.add(i)
		chart.Days[i] = WeekDayCount{Day: d.label(), Date: d.String()}
	}
	for _, log := range logs {
		idx := int(time.Time(toDay(log.Timestamp, loc)).Sub(time.Time(monday)) / (24 * time.Hour))
		if idx < 0 || idx >= len(chart.Days) {
			continue
		}
		chart.Days[idx].Count++
		chart.Total++
	}
	return chart
}
