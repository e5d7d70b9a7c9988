package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jw6ventures/habitplanner/internal/habits"
	"github.com/jw6ventures/habitplanner/internal/store"
	"github.com/jw6ventures/habitplanner/internal/store/storetest"
)

var owner = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 15, 30, 0, 0, time.UTC) }
}

func date(t *testing.T, s string) habits.Date {
	t.Helper()
	d, err := habits.ParseDate(s)
	require.NoError(t, err)
	return d
}

func ledger(t *testing.T, dates ...string) habits.Ledger {
	t.Helper()
	l := habits.Ledger{}
	for _, s := range dates {
		l = append(l, habits.Completion{Date: date(t, s), Completed: true})
	}
	return l
}

func dailyHabit(l habits.Ledger, streak habits.Streak) habits.Habit {
	return habits.Habit{
		Owner:       owner,
		Title:       "Read",
		Category:    habits.DefaultCategory,
		Schedule:    habits.Schedule{Frequency: habits.Daily},
		Color:       habits.DefaultColor,
		Icon:        habits.DefaultIcon,
		Completions: l,
		Streak:      streak,
		Active:      true,
		Version:     1,
	}
}

func newService(repo store.HabitRepository, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = fixedClock(2024, 1, 3)
	}
	return NewService(repo, opts)
}

func TestToggleCompletionExtendsStreak(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2024-01-01", "2024-01-02"), habits.Streak{Current: 2, Longest: 2}))
	svc := newService(repo, Options{})

	got, err := svc.ToggleCompletion(context.Background(), owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, habits.Streak{Current: 3, Longest: 3}, got.Streak)
	assert.True(t, habits.CompletedOn(got.Completions, date(t, "2024-01-03")))

	stored, _ := repo.Raw(h.ID)
	assert.Equal(t, got.Streak, stored.Streak)
	assert.Equal(t, int64(2), stored.Version)
}

func TestToggleCompletionTwiceRestoresLedger(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2024-01-01", "2024-01-02"), habits.Streak{Current: 2, Longest: 2}))
	svc := newService(repo, Options{})
	ctx := context.Background()

	_, err := svc.ToggleCompletion(ctx, owner, h.ID)
	require.NoError(t, err)
	got, err := svc.ToggleCompletion(ctx, owner, h.ID)
	require.NoError(t, err)

	assert.False(t, habits.CompletedOn(got.Completions, date(t, "2024-01-03")))
	assert.Equal(t, habits.Streak{Current: 2, Longest: 3}, got.Streak)
}

func TestToggleCompletionUsesConfiguredZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(habits.Ledger{}, habits.Streak{}))
	svc := NewService(repo, Options{
		Clock:    func() time.Time { return time.Date(2024, 1, 3, 20, 0, 0, 0, time.UTC) },
		Location: tokyo,
	})

	got, err := svc.ToggleCompletion(context.Background(), owner, h.ID)
	require.NoError(t, err)
	assert.True(t, habits.CompletedOn(got.Completions, date(t, "2024-01-04")))
}

func TestToggleCompletionRetriesConflicts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(habits.Ledger{}, habits.Streak{}))
	repo.FailNextMutations(h.ID, 2)
	svc := newService(repo, Options{MaxRetries: 3, Logger: zap.New(core)})

	got, err := svc.ToggleCompletion(context.Background(), owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, habits.Streak{Current: 1, Longest: 1}, got.Streak)
	assert.Equal(t, 2, logs.FilterMessage("retrying toggle after conflict").Len())
}

func TestToggleCompletionSurfacesExhaustedConflict(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(habits.Ledger{}, habits.Streak{}))
	repo.FailNextMutations(h.ID, 10)
	svc := newService(repo, Options{MaxRetries: 2, Logger: zap.New(core)})

	_, err := svc.ToggleCompletion(context.Background(), owner, h.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 1, logs.FilterMessage("toggle retries exhausted").Len())

	stored, _ := repo.Raw(h.ID)
	assert.Empty(t, stored.Completions)
	assert.Equal(t, habits.Streak{}, stored.Streak)
}

func TestToggleCompletionNotFound(t *testing.T) {
	repo := storetest.NewHabits()
	foreign := repo.Seed(habits.Habit{Owner: uuid.New(), Title: "x", Schedule: habits.Schedule{Frequency: habits.Daily}, Active: true})
	deleted := dailyHabit(habits.Ledger{}, habits.Streak{})
	deleted.Active = false
	deleted = repo.Seed(deleted)
	svc := newService(repo, Options{})

	for name, id := range map[string]uuid.UUID{"missing": uuid.New(), "foreign": foreign.ID, "inactive": deleted.ID} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ToggleCompletion(context.Background(), owner, id)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(habits.Ledger{}, habits.Streak{}))
	svc := newService(repo, Options{})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ToggleCompletion(context.Background(), owner, h.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, _ := repo.Raw(h.ID)
	require.Len(t, stored.Completions, 1)
	assert.False(t, stored.Completions[0].Completed, "an even number of toggles leaves today unmarked")
	assert.Equal(t, int64(1+n), stored.Version)
	assert.Equal(t, 0, stored.Streak.Current)
	assert.Equal(t, 1, stored.Streak.Longest)
}

func TestStatsUsesTodayAndActiveHabits(t *testing.T) {
	repo := storetest.NewHabits()
	repo.Seed(dailyHabit(ledger(t, "2024-01-02", "2024-01-03"), habits.Streak{Current: 2, Longest: 5}))
	repo.Seed(dailyHabit(ledger(t, "2024-01-03"), habits.Streak{Current: 1, Longest: 1}))
	gone := dailyHabit(ledger(t, "2024-01-03"), habits.Streak{Current: 9, Longest: 9})
	gone.Active = false
	repo.Seed(gone)
	svc := newService(repo, Options{})

	stats, err := svc.Stats(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalHabits)
	assert.Equal(t, 2, stats.CompletedToday)
	assert.Equal(t, 5, stats.LongestStreak)
	require.Len(t, stats.WeeklyActivity, habits.WeekWindow)
	last := stats.WeeklyActivity[habits.WeekWindow-1]
	assert.Equal(t, date(t, "2024-01-03"), last.Date)
	assert.Equal(t, "Wed", last.Label)
	assert.Equal(t, 2, last.Count)
}

func TestLapsePolicyZeroesStaleStreakOnRead(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2023-12-28", "2023-12-29"), habits.Streak{Current: 2, Longest: 2}))

	anchored := newService(repo, Options{})
	got, err := anchored.Get(context.Background(), owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, habits.Streak{Current: 2, Longest: 2}, got.Streak)

	lapsing := newService(repo, Options{Policy: habits.PolicyLapseAfterMissedDay})
	got, err = lapsing.Get(context.Background(), owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, habits.Streak{Current: 0, Longest: 2}, got.Streak)
}

func TestCreateAppliesDefaultsAndValidates(t *testing.T) {
	repo := storetest.NewHabits()
	svc := newService(repo, Options{})
	ctx := context.Background()

	h, err := svc.Create(ctx, owner, Draft{Title: "  Stretch ", Schedule: habits.Schedule{Frequency: habits.Daily}})
	require.NoError(t, err)
	assert.Equal(t, "Stretch", h.Title)
	assert.Equal(t, habits.DefaultCategory, h.Category)
	assert.Equal(t, habits.DefaultColor, h.Color)
	assert.Equal(t, habits.DefaultIcon, h.Icon)
	assert.True(t, h.Active)
	assert.Equal(t, habits.Streak{}, h.Streak)

	_, err = svc.Create(ctx, owner, Draft{Title: " ", Schedule: habits.Schedule{Frequency: habits.Daily}})
	assert.ErrorIs(t, err, habits.ErrValidation)

	_, err = svc.Create(ctx, owner, Draft{Title: "Gym", Schedule: habits.Schedule{Frequency: habits.Weekly}})
	assert.ErrorIs(t, err, habits.ErrValidation)
}

func TestUpdateNeverTouchesLedgerOrStreak(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2024-01-02", "2024-01-03"), habits.Streak{Current: 2, Longest: 4}))
	svc := newService(repo, Options{})

	title := "Read more"
	reminder := "08:00 AM"
	weekly := habits.Schedule{Frequency: habits.Weekly, TargetDays: []time.Weekday{time.Monday}}
	got, err := svc.Update(context.Background(), owner, h.ID, Patch{Title: &title, Reminder: &reminder, Schedule: &weekly})
	require.NoError(t, err)
	assert.Equal(t, "Read more", got.Title)
	assert.Equal(t, habits.Weekly, got.Schedule.Frequency)
	require.NotNil(t, got.Reminder)
	assert.Equal(t, "08:00 AM", *got.Reminder)

	stored, _ := repo.Raw(h.ID)
	assert.Equal(t, habits.Streak{Current: 2, Longest: 4}, stored.Streak)
	assert.Len(t, stored.Completions, 2)
	assert.Equal(t, int64(1), stored.Version)

	got, err = svc.Update(context.Background(), owner, h.ID, Patch{ClearReminder: true})
	require.NoError(t, err)
	assert.Nil(t, got.Reminder)

	bad := habits.Schedule{Frequency: habits.Monthly}
	_, err = svc.Update(context.Background(), owner, h.ID, Patch{Schedule: &bad})
	assert.ErrorIs(t, err, habits.ErrValidation)
}

func TestDeleteHidesHabit(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2024-01-03"), habits.Streak{Current: 1, Longest: 1}))
	svc := newService(repo, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, owner, h.ID))

	_, err := svc.Get(ctx, owner, h.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.Update(ctx, owner, h.ID, Patch{})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, owner, h.ID), store.ErrNotFound)

	list, err := svc.List(ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, ok := repo.Raw(h.ID)
	require.True(t, ok)
	assert.Len(t, stored.Completions, 1)
}

func TestListFiltersByFrequency(t *testing.T) {
	repo := storetest.NewHabits()
	repo.Seed(dailyHabit(habits.Ledger{}, habits.Streak{}))
	weekly := dailyHabit(habits.Ledger{}, habits.Streak{})
	weekly.Schedule = habits.Schedule{Frequency: habits.Weekly, TargetDays: []time.Weekday{time.Friday}}
	repo.Seed(weekly)
	svc := newService(repo, Options{})
	ctx := context.Background()

	all, err := svc.List(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := svc.List(ctx, owner, "Weekly")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, habits.Weekly, only[0].Schedule.Frequency)

	_, err = svc.List(ctx, owner, "hourly")
	assert.ErrorIs(t, err, habits.ErrValidation)
}

func TestHistory(t *testing.T) {
	repo := storetest.NewHabits()
	h := repo.Seed(dailyHabit(ledger(t, "2023-11-01", "2023-12-30", "2024-01-02"), habits.Streak{Current: 1, Longest: 1}))
	svc := newService(repo, Options{})
	ctx := context.Background()

	got, err := svc.History(ctx, owner, h.ID, habits.Date{}, habits.Date{})
	require.NoError(t, err)
	assert.Equal(t, date(t, "2023-12-05"), got.From)
	assert.Equal(t, date(t, "2024-01-03"), got.To)
	assert.Equal(t, []habits.Date{date(t, "2023-12-30"), date(t, "2024-01-02")}, got.Dates)

	got, err = svc.History(ctx, owner, h.ID, date(t, "2023-11-01"), date(t, "2023-11-30"))
	require.NoError(t, err)
	assert.Equal(t, []habits.Date{date(t, "2023-11-01")}, got.Dates)

	got, err = svc.History(ctx, owner, h.ID, date(t, "2023-06-01"), date(t, "2023-06-30"))
	require.NoError(t, err)
	assert.NotNil(t, got.Dates)
	assert.Empty(t, got.Dates)

	_, err = svc.History(ctx, owner, h.ID, date(t, "2024-01-02"), date(t, "2024-01-01"))
	assert.True(t, errors.Is(err, habits.ErrValidation))

	_, err = svc.History(ctx, owner, h.ID, date(t, "2020-01-01"), date(t, "2024-01-01"))
	assert.ErrorIs(t, err, habits.ErrValidation)
}
