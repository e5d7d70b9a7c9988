// Package storetest provides in-memory repositories for tests of packages
// layered on top of the store.
package storetest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/habitplanner/internal/habits"
	"github.com/jw6ventures/habitplanner/internal/store"
)

// Habits is an in-memory store.HabitRepository. Mutate holds a per-habit
// lock for the duration of the callback, like the row lock in PostgreSQL.
type Habits struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]habits.Habit
	order   []uuid.UUID
	locks   map[uuid.UUID]*sync.Mutex
	pending map[uuid.UUID]int

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

var _ store.HabitRepository = (*Habits)(nil)

func NewHabits() *Habits {
	return &Habits{
		rows:    make(map[uuid.UUID]habits.Habit),
		locks:   make(map[uuid.UUID]*sync.Mutex),
		pending: make(map[uuid.UUID]int),
		Now:     time.Now,
	}
}

// Seed stores h as-is, including its ledger, streak and Active flag.
func (s *Habits) Seed(h habits.Habit) habits.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if _, ok := s.rows[h.ID]; !ok {
		s.order = append(s.order, h.ID)
	}
	s.rows[h.ID] = clone(h)
	return clone(h)
}

// FailNextMutations makes the next n Mutate calls on id lose the version
// check after running their callback.
func (s *Habits) FailNextMutations(id uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = n
}

// Raw returns the stored habit regardless of owner or Active flag.
func (s *Habits) Raw(id uuid.UUID) (habits.Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.rows[id]
	return clone(h), ok
}

func (s *Habits) ListActiveByUser(ctx context.Context, userID uuid.UUID, filter store.HabitFilter) ([]habits.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []habits.Habit{}
	for i := len(s.order) - 1; i >= 0; i-- {
		h := s.rows[s.order[i]]
		if h.Owner != userID || !h.Active {
			continue
		}
		if filter.Frequency != "" && string(h.Schedule.Frequency) != filter.Frequency {
			continue
		}
		result = append(result, clone(h))
	}
	return result, nil
}

func (s *Habits) GetByID(ctx context.Context, userID, id uuid.UUID) (*habits.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.visible(userID, id)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Habits) Create(ctx context.Context, h habits.Habit) (*habits.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := s.Now()
	h.Active = true
	h.Version = 1
	h.Streak = habits.Streak{}
	h.Completions = habits.Ledger{}
	h.CreatedAt, h.UpdatedAt = now, now
	s.rows[h.ID] = clone(h)
	s.order = append(s.order, h.ID)
	return &h, nil
}

func (s *Habits) UpdateDetails(ctx context.Context, h habits.Habit) (*habits.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.visible(h.Owner, h.ID)
	if err != nil {
		return nil, err
	}
	cur.Title = h.Title
	cur.Category = h.Category
	cur.Schedule = h.Schedule
	cur.Reminder = h.Reminder
	cur.Color = h.Color
	cur.Icon = h.Icon
	cur.UpdatedAt = s.Now()
	s.rows[h.ID] = clone(cur)

	h.UpdatedAt = cur.UpdatedAt
	return &h, nil
}

func (s *Habits) SoftDelete(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.visible(userID, id)
	if err != nil {
		return err
	}
	cur.Active = false
	cur.UpdatedAt = s.Now()
	s.rows[id] = cur
	return nil
}

func (s *Habits) Mutate(ctx context.Context, userID, id uuid.UUID, fn store.MutateFunc) (*habits.Habit, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	h, err := s.visible(userID, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	version := h.Version
	entry, err := fn(&h)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] > 0 {
		s.pending[id]--
		return nil, store.ErrConflict
	}
	cur := s.rows[id]
	if cur.Version != version {
		return nil, store.ErrConflict
	}

	cur.Completions = upsert(cur.Completions, entry)
	cur.Streak = h.Streak
	cur.Version = version + 1
	cur.UpdatedAt = s.Now()
	s.rows[id] = clone(cur)

	h.Version = cur.Version
	h.UpdatedAt = cur.UpdatedAt
	return &h, nil
}

func (s *Habits) visible(userID, id uuid.UUID) (habits.Habit, error) {
	h, ok := s.rows[id]
	if !ok || h.Owner != userID || !h.Active {
		return habits.Habit{}, store.ErrNotFound
	}
	return clone(h), nil
}

func (s *Habits) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func upsert(l habits.Ledger, entry habits.Completion) habits.Ledger {
	out := habits.Normalize(l)
	for i := range out {
		if out[i].Date == entry.Date {
			out[i].Completed = entry.Completed
			return out
		}
	}
	return append(out, entry)
}

func clone(h habits.Habit) habits.Habit {
	h.Completions = slices.Clone(h.Completions)
	h.Schedule.TargetDays = slices.Clone(h.Schedule.TargetDays)
	h.Schedule.TargetWeeks = slices.Clone(h.Schedule.TargetWeeks)
	h.Schedule.CustomDates = slices.Clone(h.Schedule.CustomDates)
	if h.Reminder != nil {
		r := *h.Reminder
		h.Reminder = &r
	}
	return h
}

// Users is an in-memory store.UserRepository.
type Users struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]store.User
	bySubject map[string]uuid.UUID
}

var _ store.UserRepository = (*Users)(nil)

func NewUsers() *Users {
	return &Users{byID: make(map[uuid.UUID]store.User), bySubject: make(map[string]uuid.UUID)}
}

// Add registers u and returns it.
func (s *Users) Add(u store.User) store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.byID[u.ID] = u
	if u.Subject != nil {
		s.bySubject[*u.Subject] = u.ID
	}
	return u
}

func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Users) UpsertBySubject(ctx context.Context, subject, email, name string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if id, ok := s.bySubject[subject]; ok {
		u := s.byID[id]
		u.Email, u.Name, u.LastLoginAt = email, name, &now
		s.byID[id] = u
		return &u, nil
	}
	sub := subject
	u := store.User{ID: uuid.New(), Subject: &sub, Email: email, Name: name, CreatedAt: now, LastLoginAt: &now}
	s.byID[u.ID] = u
	s.bySubject[subject] = u.ID
	return &u, nil
}
