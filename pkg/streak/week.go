package streak

import (
	"time"

	"mom-support-backend/pkg/models"
)

// dayLabels are indexed by weekday, Sunday first.
var dayLabels = [7]string{"S", "M", "T", "W", "T", "F", "S"}

// SameWeek reports whether a and b share an ISO-8601 week (year and number).
func SameWeek(a, b models.Date) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// Advance applies one activity on day to prev and returns the new state.
// prev is not modified; a nil prev starts a new streak.
func Advance(prev *models.StreakRecord, day models.Date) models.StreakRecord {
	weekday := int(day.Weekday())

	if prev == nil || prev.LastActivityDate.IsZero() {
		next := models.StreakRecord{
			CurrentStreak:    1,
			LongestStreak:    1,
			LastActivityDate: day,
			StreakStartDate:  day,
			ActivityDays:     []int{weekday},
		}
		if prev != nil {
			next.ID, next.UserID, next.StreakType = prev.ID, prev.UserID, prev.StreakType
			next.LongestStreak = max(prev.LongestStreak, 1)
		}
		return next
	}

	next := *prev
	if SameWeek(prev.LastActivityDate, day) {
		next.ActivityDays = addDay(prev.ActivityDays, weekday)
	} else {
		next.ActivityDays = []int{weekday}
	}

	// a decayed record (current 0) restarts even one day after its last activity
	switch gap := day.DaysSince(prev.LastActivityDate); {
	case gap == 0 && prev.CurrentStreak > 0:
	case gap == 1 && prev.CurrentStreak > 0:
		next.CurrentStreak++
	default:
		// gaps over a day break the streak; out-of-order dates do too
		next.CurrentStreak = 1
		next.StreakStartDate = day
	}

	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	next.LastActivityDate = day
	return next
}

func addDay(days []int, weekday int) []int {
	out := append(make([]int, 0, len(days)+1), days...)
	for _, d := range days {
		if d == weekday {
			return out
		}
	}
	return append(out, weekday)
}

// EmptyWeek is the view for a user with no record.
func EmptyWeek() models.WeekStreakView {
	return ProjectWeek(nil)
}

// ProjectWeek builds the Sunday..Saturday view of a record.
func ProjectWeek(rec *models.StreakRecord) models.WeekStreakView {
	view := models.WeekStreakView{ActiveDays: make([]models.DayActivity, 0, len(dayLabels))}
	active := 0
	for i, label := range dayLabels {
		on := rec != nil && rec.HasActivityOn(time.Weekday(i))
		if on {
			active++
		}
		view.ActiveDays = append(view.ActiveDays, models.DayActivity{DayNumber: i, DayLabel: label, IsActive: on})
	}
	if rec == nil {
		return view
	}

	view.CurrentStreak = rec.CurrentStreak
	view.LongestStreak = rec.LongestStreak
	view.WeekComplete = active == len(dayLabels)
	if !rec.LastActivityDate.IsZero() {
		last := rec.LastActivityDate
		view.LastActivityDate = &last
	}
	return view
}
