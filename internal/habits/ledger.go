package habits

import "slices"

// Completion is one day's entry in a habit's ledger. An entry with
// Completed=false records that the user explicitly unmarked the day.
type Completion struct {
	Date      Date `json:"date"`
	Completed bool `json:"completed"`
}

// Ledger is the unordered completion history of a single habit.
type Ledger []Completion

// Toggle flips the entry for day, or records day as completed when no entry
// exists yet. The input ledger is left untouched; the returned ledger holds at
// most one entry per date. The second result is the entry as it now stands.
func Toggle(l Ledger, day Date) (Ledger, Completion) {
	out := Normalize(l)
	for i := range out {
		if out[i].Date == day {
			out[i].Completed = !out[i].Completed
			return out, out[i]
		}
	}
	entry := Completion{Date: day, Completed: true}
	return append(out, entry), entry
}

// Normalize collapses duplicate dates into a single entry. The entry keeps the
// position of its first occurrence and the value of its last.
func Normalize(l Ledger) Ledger {
	out := make(Ledger, 0, len(l)+1)
	seen := make(map[Date]int, len(l))
	for _, c := range l {
		if i, ok := seen[c.Date]; ok {
			out[i].Completed = c.Completed
			continue
		}
		seen[c.Date] = len(out)
		out = append(out, c)
	}
	return out
}

// Entry returns the effective entry for day.
func Entry(l Ledger, day Date) (Completion, bool) {
	var (
		found Completion
		ok    bool
	)
	for _, c := range l {
		if c.Date == day {
			found, ok = c, true
		}
	}
	return found, ok
}

// CompletedOn reports whether day is marked completed.
func CompletedOn(l Ledger, day Date) bool {
	c, ok := Entry(l, day)
	return ok && c.Completed
}

// CompletedDates returns the distinct completed dates, most recent first.
func CompletedDates(l Ledger) []Date {
	var dates []Date
	for _, c := range Normalize(l) {
		if c.Completed {
			dates = append(dates, c.Date)
		}
	}
	slices.SortFunc(dates, func(a, b Date) int { return b.Compare(a) })
	return dates
}

// CompletedBetween returns completed dates within [from, to], oldest first.
func CompletedBetween(l Ledger, from, to Date) []Date {
	var dates []Date
	for _, d := range CompletedDates(l) {
		if d.Before(from) || d.After(to) {
			continue
		}
		dates = append(dates, d)
	}
	slices.Reverse(dates)
	return dates
}

func completedSet(l Ledger) map[Date]struct{} {
	set := make(map[Date]struct{}, len(l))
	for _, c := range Normalize(l) {
		if c.Completed {
			set[c.Date] = struct{}{}
		}
	}
	return set
}
