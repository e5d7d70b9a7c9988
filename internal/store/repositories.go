package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/jw6ventures/habitplanner/internal/habits"
)

// UserRepository resolves authenticated identities to accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpsertBySubject(ctx context.Context, subject, email, name string) (*User, error)
}

// MutateFunc changes a locked habit in place and returns the single ledger
// entry that must be persisted alongside the new streak.
type MutateFunc func(h *habits.Habit) (habits.Completion, error)

// HabitRepository persists habits and their completion ledgers. Reads only
// ever return active habits owned by the given user.
type HabitRepository interface {
	ListActiveByUser(ctx context.Context, userID uuid.UUID, filter HabitFilter) ([]habits.Habit, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*habits.Habit, error)
	Create(ctx context.Context, h habits.Habit) (*habits.Habit, error)
	UpdateDetails(ctx context.Context, h habits.Habit) (*habits.Habit, error)
	SoftDelete(ctx context.Context, userID, id uuid.UUID) error
	// Mutate runs fn while holding exclusive access to the habit. The ledger
	// entry and streak fields fn produces are committed together or not at all.
	Mutate(ctx context.Context, userID, id uuid.UUID, fn MutateFunc) (*habits.Habit, error)
}
