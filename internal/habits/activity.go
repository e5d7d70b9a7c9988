package habits

// WeekWindow is the number of days in the dashboard activity histogram.
const WeekWindow = 7

// DayCount is one bucket of the activity histogram.
type DayCount struct {
	Label string `json:"day"`
	Date  Date   `json:"date"`
	Count int    `json:"count"`
}

// Stats is the dashboard summary rendered by clients.
type Stats struct {
	TotalHabits    int        `json:"totalHabits"`
	CompletedToday int        `json:"completedToday"`
	LongestStreak  int        `json:"longestStreak"`
	WeeklyActivity []DayCount `json:"weeklyActivity"`
}

// ActiveOnly drops soft-deleted habits.
func ActiveOnly(hs []Habit) []Habit {
	out := make([]Habit, 0, len(hs))
	for _, h := range hs {
		if h.Active {
			out = append(out, h)
		}
	}
	return out
}

// DailyCompletionCount counts active habits completed on day.
func DailyCompletionCount(hs []Habit, day Date) int {
	n := 0
	for _, h := range hs {
		if h.Active && CompletedOn(h.Completions, day) {
			n++
		}
	}
	return n
}

// WindowActivity returns one bucket per day for the days ending at today
// inclusive, oldest first.
func WindowActivity(hs []Habit, today Date, days int) []DayCount {
	if days <= 0 {
		return []DayCount{}
	}
	sets := make([]map[Date]struct{}, 0, len(hs))
	for _, h := range ActiveOnly(hs) {
		sets = append(sets, completedSet(h.Completions))
	}

	buckets := make([]DayCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDays(-i)
		count := 0
		for _, set := range sets {
			if _, ok := set[day]; ok {
				count++
			}
		}
		buckets = append(buckets, DayCount{Label: WeekdayLabel(day.Weekday()), Date: day, Count: count})
	}
	return buckets
}

// Summarize builds the dashboard stats for one user's habits as of today.
func Summarize(hs []Habit, today Date) Stats {
	active := ActiveOnly(hs)
	stats := Stats{
		TotalHabits:    len(active),
		CompletedToday: DailyCompletionCount(active, today),
		WeeklyActivity: WindowActivity(active, today, WeekWindow),
	}
	for _, h := range active {
		if h.Streak.Longest > stats.LongestStreak {
			stats.LongestStreak = h.Streak.Longest
		}
	}
	return stats
}
