package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/habitplanner/internal/habits"
)

const habitColumns = `id, user_id, title, category, frequency, target_days, target_weeks, custom_dates,
reminder, color, icon, current_streak, longest_streak, is_active, version, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// habitRepo implements HabitRepository.
type habitRepo struct {
	pool Pool
}

func (r *habitRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, filter HabitFilter) ([]habits.Habit, error) {
	defer observeDB(ctx, "habits.list_active")()

	rows, err := r.pool.Query(ctx, `SELECT `+habitColumns+` FROM habits
WHERE user_id=$1 AND is_active AND ($2 = '' OR frequency = $2)
ORDER BY created_at DESC`, userID, filter.Frequency)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var result []habits.Habit
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		index[h.ID] = len(result)
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	crow, err := r.pool.Query(ctx, `SELECT c.habit_id, c.day, c.completed FROM habit_completions c
JOIN habits h ON h.id = c.habit_id
WHERE h.user_id=$1 AND h.is_active
ORDER BY c.day`, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer crow.Close()

	for crow.Next() {
		var (
			habitID   uuid.UUID
			day       time.Time
			completed bool
		)
		if err := crow.Scan(&habitID, &day, &completed); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		i, ok := index[habitID]
		if !ok {
			continue
		}
		result[i].Completions = append(result[i].Completions, habits.Completion{
			Date:      habits.DateOf(day, time.UTC),
			Completed: completed,
		})
	}
	if err := crow.Err(); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return result, nil
}

func (r *habitRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*habits.Habit, error) {
	defer observeDB(ctx, "habits.get")()

	row := r.pool.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits
WHERE id=$1 AND user_id=$2 AND is_active`, id, userID)
	h, err := scanHabit(row)
	if err != nil {
		return nil, err
	}
	if h.Completions, err = loadLedger(ctx, r.pool, id); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *habitRepo) Create(ctx context.Context, h habits.Habit) (*habits.Habit, error) {
	defer observeDB(ctx, "habits.create")()

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO habits (id, user_id, title, category, frequency, target_days, target_weeks,
custom_dates, reminder, color, icon, current_streak, longest_streak, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, TRUE)
RETURNING version, created_at, updated_at`,
		h.ID, h.Owner, h.Title, h.Category, string(h.Schedule.Frequency),
		h.Schedule.DayLabels(), h.Schedule.WeekLabels(), h.Schedule.DateLabels(),
		h.Reminder, h.Color, h.Icon)
	if err := row.Scan(&h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert habit: %w", translateError(err))
	}
	h.Active = true
	h.Streak = habits.Streak{}
	h.Completions = habits.Ledger{}
	return &h, nil
}

// UpdateDetails writes the descriptive fields only. Completions and streak
// columns are never touched here.
func (r *habitRepo) UpdateDetails(ctx context.Context, h habits.Habit) (*habits.Habit, error) {
	defer observeDB(ctx, "habits.update_details")()

	row := r.pool.QueryRow(ctx, `UPDATE habits SET title=$3, category=$4, frequency=$5, target_days=$6,
target_weeks=$7, custom_dates=$8, reminder=$9, color=$10, icon=$11, updated_at=NOW()
WHERE id=$1 AND user_id=$2 AND is_active
RETURNING updated_at`,
		h.ID, h.Owner, h.Title, h.Category, string(h.Schedule.Frequency),
		h.Schedule.DayLabels(), h.Schedule.WeekLabels(), h.Schedule.DateLabels(),
		h.Reminder, h.Color, h.Icon)
	if err := row.Scan(&h.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update habit: %w", translateError(err))
	}
	return &h, nil
}

func (r *habitRepo) SoftDelete(ctx context.Context, userID, id uuid.UUID) error {
	defer observeDB(ctx, "habits.soft_delete")()

	tag, err := r.pool.Exec(ctx, `UPDATE habits SET is_active=FALSE, updated_at=NOW()
WHERE id=$1 AND user_id=$2 AND is_active`, id, userID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *habitRepo) Mutate(ctx context.Context, userID, id uuid.UUID, fn MutateFunc) (*habits.Habit, error) {
	defer observeDB(ctx, "habits.mutate")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin habit mutation: %w", translateError(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits
WHERE id=$1 AND user_id=$2 AND is_active
FOR UPDATE`, id, userID)
	h, err := scanHabit(row)
	if err != nil {
		return nil, err
	}
	if h.Completions, err = loadLedger(ctx, tx, id); err != nil {
		return nil, err
	}

	version := h.Version
	entry, err := fn(h)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO habit_completions (habit_id, day, completed)
VALUES ($1, $2, $3)
ON CONFLICT (habit_id, day) DO UPDATE SET completed = EXCLUDED.completed`,
		id, entry.Date.Time(), entry.Completed); err != nil {
		return nil, fmt.Errorf("write completion: %w", translateError(err))
	}

	tag, err := tx.Exec(ctx, `UPDATE habits SET current_streak=$3, longest_streak=$4, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`, id, version, h.Streak.Current, h.Streak.Longest)
	if err != nil {
		return nil, fmt.Errorf("write streak: %w", translateError(err))
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("%w: habit %s changed while toggling", ErrConflict, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit habit mutation: %w", translateError(err))
	}
	h.Version = version + 1
	return h, nil
}

func loadLedger(ctx context.Context, q querier, habitID uuid.UUID) (habits.Ledger, error) {
	rows, err := q.Query(ctx, `SELECT day, completed FROM habit_completions WHERE habit_id=$1 ORDER BY day`, habitID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", translateError(err))
	}
	defer rows.Close()

	ledger := habits.Ledger{}
	for rows.Next() {
		var (
			day       time.Time
			completed bool
		)
		if err := rows.Scan(&day, &completed); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		ledger = append(ledger, habits.Completion{Date: habits.DateOf(day, time.UTC), Completed: completed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", translateError(err))
	}
	return ledger, nil
}

func scanHabit(row pgx.Row) (*habits.Habit, error) {
	var (
		h                  habits.Habit
		freq               string
		days, weeks, dates []string
	)
	err := row.Scan(&h.ID, &h.Owner, &h.Title, &h.Category, &freq, &days, &weeks, &dates,
		&h.Reminder, &h.Color, &h.Icon, &h.Streak.Current, &h.Streak.Longest, &h.Active, &h.Version,
		&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan habit: %w", translateError(err))
	}
	h.Schedule, err = habits.ParseSchedule(freq, days, weeks, dates)
	if err != nil {
		return nil, fmt.Errorf("decode schedule of habit %s: %w", h.ID, err)
	}
	return &h, nil
}
