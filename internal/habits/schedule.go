package habits

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Frequency is how often a habit is meant to be done.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Custom:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown frequency %q", ErrValidation, s)
}

// LastWeek selects the final seven days of a month.
const LastWeek = -1

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayLabel returns the short English name used on the wire.
func WeekdayLabel(d time.Weekday) string {
	return weekdayNames[d]
}

// Schedule selects the days a habit is due. Which selector applies depends on
// Frequency; the others stay empty.
type Schedule struct {
	Frequency   Frequency
	TargetDays  []time.Weekday
	TargetWeeks []int
	CustomDates []Date
}

// ParseSchedule validates the selector shape for freq and returns the
// canonical schedule.
func ParseSchedule(freq string, days, weeks, dates []string) (Schedule, error) {
	f, err := ParseFrequency(freq)
	if err != nil {
		return Schedule{}, err
	}
	s := Schedule{Frequency: f}

	for _, d := range days {
		wd, ok := parseWeekday(d)
		if !ok {
			return Schedule{}, fmt.Errorf("%w: unknown weekday %q", ErrValidation, d)
		}
		if !slices.Contains(s.TargetDays, wd) {
			s.TargetDays = append(s.TargetDays, wd)
		}
	}
	for _, w := range weeks {
		n, ok := parseWeekOfMonth(w)
		if !ok {
			return Schedule{}, fmt.Errorf("%w: unknown week %q", ErrValidation, w)
		}
		if !slices.Contains(s.TargetWeeks, n) {
			s.TargetWeeks = append(s.TargetWeeks, n)
		}
	}
	for _, raw := range dates {
		d, err := ParseDate(raw)
		if err != nil {
			return Schedule{}, err
		}
		if !slices.Contains(s.CustomDates, d) {
			s.CustomDates = append(s.CustomDates, d)
		}
	}

	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Validate checks that exactly the selector belonging to Frequency is used.
func (s Schedule) Validate() error {
	days, weeks, dates := len(s.TargetDays) > 0, len(s.TargetWeeks) > 0, len(s.CustomDates) > 0
	switch s.Frequency {
	case Daily:
		if days || weeks || dates {
			return fmt.Errorf("%w: daily habits take no schedule selectors", ErrValidation)
		}
	case Weekly:
		if !days || weeks || dates {
			return fmt.Errorf("%w: weekly habits need targetDays only", ErrValidation)
		}
	case Monthly:
		if !weeks || days || dates {
			return fmt.Errorf("%w: monthly habits need targetWeeks only", ErrValidation)
		}
	case Custom:
		if !dates || days || weeks {
			return fmt.Errorf("%w: custom habits need customDates only", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrValidation, s.Frequency)
	}
	return nil
}

// DueOn reports whether the schedule includes day. Days 29-31 only belong to
// the last week of their month.
func (s Schedule) DueOn(day Date) bool {
	switch s.Frequency {
	case Daily:
		return true
	case Weekly:
		return slices.Contains(s.TargetDays, day.Weekday())
	case Monthly:
		if day.Day <= 28 && slices.Contains(s.TargetWeeks, (day.Day-1)/7+1) {
			return true
		}
		lastDay := NewDate(day.Year, day.Month+1, 0).Day
		return day.Day > lastDay-7 && slices.Contains(s.TargetWeeks, LastWeek)
	case Custom:
		return slices.Contains(s.CustomDates, day)
	}
	return false
}

// DayLabels renders TargetDays for the wire.
func (s Schedule) DayLabels() []string {
	out := make([]string, 0, len(s.TargetDays))
	for _, d := range s.TargetDays {
		out = append(out, WeekdayLabel(d))
	}
	return out
}

// WeekLabels renders TargetWeeks for the wire.
func (s Schedule) WeekLabels() []string {
	out := make([]string, 0, len(s.TargetWeeks))
	for _, w := range s.TargetWeeks {
		if w == LastWeek {
			out = append(out, "Last Week")
			continue
		}
		out = append(out, fmt.Sprintf("Week %d", w))
	}
	return out
}

// DateLabels renders CustomDates for the wire.
func (s Schedule) DateLabels() []string {
	out := make([]string, 0, len(s.CustomDates))
	for _, d := range s.CustomDates {
		out = append(out, d.String())
	}
	return out
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(s)
	for i, name := range weekdayNames {
		if strings.EqualFold(s, name) || strings.EqualFold(s, time.Weekday(i).String()) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

func parseWeekOfMonth(s string) (int, bool) {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch s {
	case "week 1":
		return 1, true
	case "week 2":
		return 2, true
	case "week 3":
		return 3, true
	case "week 4":
		return 4, true
	case "last week":
		return LastWeek, true
	}
	return 0, false
}
