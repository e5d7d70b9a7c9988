package habits

import "fmt"

// Streak holds the derived streak fields stored on a habit.
type Streak struct {
	Current int `json:"currentStreak"`
	Longest int `json:"longestStreak"`
}

// Policy decides how the current streak relates to the reference date.
type Policy string

const (
	// PolicyAnchorLastCompletion counts the run ending at the most recent
	// completion, however long ago that was. A missed day only shows up the
	// next time the streak is recomputed after a newer completion.
	PolicyAnchorLastCompletion Policy = "last-completion"
	// PolicyLapseAfterMissedDay reports a current streak of zero once the most
	// recent completion is strictly before yesterday.
	PolicyLapseAfterMissedDay Policy = "lapse"
)

// ParsePolicy accepts the configured policy name. Empty selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAnchorLastCompletion:
		return PolicyAnchorLastCompletion, nil
	case PolicyLapseAfterMissedDay:
		return PolicyLapseAfterMissedDay, nil
	}
	return "", fmt.Errorf("unknown streak policy %q", s)
}

// Calculator derives streaks from a ledger. The zero value uses
// PolicyAnchorLastCompletion.
type Calculator struct {
	Policy Policy
}

// Calculate recomputes the streak for l. Longest is a high-water mark: it is
// carried over from previous and only ever raised.
func (c Calculator) Calculate(l Ledger, previous Streak, today Date) Streak {
	next := Streak{Longest: previous.Longest}

	dates := CompletedDates(l)
	if len(dates) == 0 {
		return next
	}

	run := 0
	expected := dates[0]
	for _, d := range dates {
		if d != expected {
			break
		}
		run++
		expected = expected.AddDays(-1)
	}

	if run > next.Longest {
		next.Longest = run
	}
	next.Current = run
	if c.Policy == PolicyLapseAfterMissedDay && today.DaysSince(dates[0]) > 1 {
		next.Current = 0
	}
	return next
}
