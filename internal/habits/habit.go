// Package habits holds the habit domain: civil dates, completion ledgers,
// streak calculation and cross-habit activity rollups. Nothing here performs
// I/O or reads a clock; callers pass the reference date explicitly.
package habits

import (
	"time"

	"github.com/google/uuid"
)

// Habit is a tracked habit owned by exactly one user. Streak is derived from
// Completions and is only written together with the ledger change that
// produced it. Active=false marks a soft-deleted habit.
type Habit struct {
	ID          uuid.UUID
	Owner       uuid.UUID
	Title       string
	Category    string
	Schedule    Schedule
	Reminder    *string
	Color       string
	Icon        string
	Completions Ledger
	Streak      Streak
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	DefaultCategory = "General"
	DefaultColor    = "#7C6FFF"
	DefaultIcon     = "📝"
)
