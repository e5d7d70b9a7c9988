// Package tracker orchestrates habit reads and mutations on top of the
// store. It owns the reference clock: "today" is decided here, once per
// request, and handed to the pure functions in package habits.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/habits"
	"github.com/jw6ventures/habitplanner/internal/metrics"
	"github.com/jw6ventures/habitplanner/internal/store"
)

const (
	defaultMaxRetries = 3
	// MaxHistoryDays bounds a single History query.
	MaxHistoryDays = 366
	// DefaultHistoryDays is the window used when no range is given.
	DefaultHistoryDays = 30
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Clock      func() time.Time
	Location   *time.Location
	Policy     habits.Policy
	MaxRetries int
	Logger     *zap.Logger
}

// Service is safe for concurrent use.
type Service struct {
	habits     store.HabitRepository
	clock      func() time.Time
	loc        *time.Location
	calc       habits.Calculator
	maxRetries int
	log        *zap.Logger
}

func NewService(repo store.HabitRepository, opts Options) *Service {
	s := &Service{
		habits:     repo,
		clock:      opts.Clock,
		loc:        opts.Location,
		calc:       habits.Calculator{Policy: opts.Policy},
		maxRetries: opts.MaxRetries,
		log:        opts.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.calc.Policy == "" {
		s.calc.Policy = habits.PolicyAnchorLastCompletion
	}
	return s
}

// Today is the civil date of the service clock in the configured zone.
func (s *Service) Today() habits.Date {
	return habits.DateOf(s.clock(), s.loc)
}

// ToggleCompletion flips today's entry for the habit and recomputes its
// streak. The ledger entry and streak are committed together; a lost race
// against a concurrent toggle is retried from a fresh read.
func (s *Service) ToggleCompletion(ctx context.Context, owner, id uuid.UUID) (*habits.Habit, error) {
	today := s.Today()
	apply := func(h *habits.Habit) (habits.Completion, error) {
		var entry habits.Completion
		h.Completions, entry = habits.Toggle(h.Completions, today)
		h.Streak = s.calc.Calculate(h.Completions, h.Streak, today)
		return entry, nil
	}

	for attempt := 0; ; attempt++ {
		h, err := s.habits.Mutate(ctx, owner, id, apply)
		if err == nil {
			result := metrics.ToggleUncompleted
			if habits.CompletedOn(h.Completions, today) {
				result = metrics.ToggleCompleted
			}
			metrics.ObserveToggle(result)
			s.log.Debug("completion toggled",
				zap.Stringer("habit_id", id),
				zap.Stringer("day", today),
				zap.String("result", result),
				zap.Int("current_streak", h.Streak.Current),
				zap.Int("longest_streak", h.Streak.Longest))
			return s.present(h, today), nil
		}

		if !errors.Is(err, store.ErrConflict) {
			if !errors.Is(err, store.ErrNotFound) {
				metrics.ObserveToggle(metrics.ToggleError)
			}
			return nil, err
		}
		if attempt >= s.maxRetries {
			metrics.ObserveToggle(metrics.ToggleConflict)
			s.log.Warn("toggle retries exhausted", zap.Stringer("habit_id", id), zap.Int("attempts", attempt+1))
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.ObserveConflictRetry()
		s.log.Debug("retrying toggle after conflict", zap.Stringer("habit_id", id), zap.Int("attempt", attempt+1))
	}
}

// Stats summarizes the owner's active habits as of today.
func (s *Service) Stats(ctx context.Context, owner uuid.UUID) (habits.Stats, error) {
	hs, err := s.habits.ListActiveByUser(ctx, owner, store.HabitFilter{})
	if err != nil {
		return habits.Stats{}, err
	}
	return habits.Summarize(hs, s.Today()), nil
}

// List returns the owner's active habits, newest first. An empty frequency
// lists every kind.
func (s *Service) List(ctx context.Context, owner uuid.UUID, frequency string) ([]habits.Habit, error) {
	var filter store.HabitFilter
	if frequency != "" {
		f, err := habits.ParseFrequency(frequency)
		if err != nil {
			return nil, err
		}
		filter.Frequency = string(f)
	}

	hs, err := s.habits.ListActiveByUser(ctx, owner, filter)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	for i := range hs {
		hs[i] = *s.present(&hs[i], today)
	}
	return hs, nil
}

func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*habits.Habit, error) {
	h, err := s.habits.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.present(h, s.Today()), nil
}

// Draft holds the descriptive fields of a new habit.
type Draft struct {
	Title    string
	Category string
	Schedule habits.Schedule
	Reminder *string
	Color    string
	Icon     string
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, d Draft) (*habits.Habit, error) {
	h := habits.Habit{
		Owner:    owner,
		Title:    strings.TrimSpace(d.Title),
		Category: orDefault(d.Category, habits.DefaultCategory),
		Schedule: d.Schedule,
		Reminder: d.Reminder,
		Color:    orDefault(d.Color, habits.DefaultColor),
		Icon:     orDefault(d.Icon, habits.DefaultIcon),
	}
	if err := validateDetails(h); err != nil {
		return nil, err
	}

	created, err := s.habits.Create(ctx, h)
	if err != nil {
		return nil, err
	}
	s.log.Info("habit created", zap.Stringer("habit_id", created.ID), zap.String("frequency", string(created.Schedule.Frequency)))
	return created, nil
}

// Patch changes a subset of a habit's descriptive fields. Nil fields are
// left alone. ClearReminder removes the reminder.
type Patch struct {
	Title         *string
	Category      *string
	Schedule      *habits.Schedule
	Reminder      *string
	ClearReminder bool
	Color         *string
	Icon          *string
}

// Update applies p to the habit. Completions and streaks are never changed
// here.
func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, p Patch) (*habits.Habit, error) {
	h, err := s.habits.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		h.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		h.Category = orDefault(*p.Category, habits.DefaultCategory)
	}
	if p.Schedule != nil {
		h.Schedule = *p.Schedule
	}
	switch {
	case p.ClearReminder:
		h.Reminder = nil
	case p.Reminder != nil:
		h.Reminder = p.Reminder
	}
	if p.Color != nil {
		h.Color = orDefault(*p.Color, habits.DefaultColor)
	}
	if p.Icon != nil {
		h.Icon = orDefault(*p.Icon, habits.DefaultIcon)
	}
	if err := validateDetails(*h); err != nil {
		return nil, err
	}

	updated, err := s.habits.UpdateDetails(ctx, *h)
	if err != nil {
		return nil, err
	}
	return s.present(updated, s.Today()), nil
}

// Delete soft-deletes the habit. Its ledger is kept but it drops out of
// every read.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.habits.SoftDelete(ctx, owner, id); err != nil {
		return err
	}
	s.log.Info("habit deleted", zap.Stringer("habit_id", id))
	return nil
}

// History is the completed dates of one habit within an inclusive range,
// ascending.
type History struct {
	From  habits.Date
	To    habits.Date
	Dates []habits.Date
}

// History returns the habit's completions within [from, to]. Zero bounds
// default to the DefaultHistoryDays ending today.
func (s *Service) History(ctx context.Context, owner, id uuid.UUID, from, to habits.Date) (History, error) {
	if to.IsZero() {
		to = s.Today()
	}
	if from.IsZero() {
		from = to.AddDays(-(DefaultHistoryDays - 1))
	}
	if to.Before(from) {
		return History{}, fmt.Errorf("%w: from %s is after to %s", habits.ErrValidation, from, to)
	}
	if to.DaysSince(from) >= MaxHistoryDays {
		return History{}, fmt.Errorf("%w: range exceeds %d days", habits.ErrValidation, MaxHistoryDays)
	}

	h, err := s.habits.GetByID(ctx, owner, id)
	if err != nil {
		return History{}, err
	}
	dates := habits.CompletedBetween(h.Completions, from, to)
	if dates == nil {
		dates = []habits.Date{}
	}
	return History{From: from, To: to, Dates: dates}, nil
}

// present adjusts the stored streak for display. Under the lapse policy a
// streak whose last completion is older than yesterday reads as zero.
func (s *Service) present(h *habits.Habit, today habits.Date) *habits.Habit {
	if s.calc.Policy == habits.PolicyLapseAfterMissedDay {
		h.Streak = s.calc.Calculate(h.Completions, h.Streak, today)
	}
	return h
}

func validateDetails(h habits.Habit) error {
	if h.Title == "" {
		return fmt.Errorf("%w: title is required", habits.ErrValidation)
	}
	return h.Schedule.Validate()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
