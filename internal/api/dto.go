package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jw6ventures/habitplanner/internal/habits"
)

// habitResponse is the wire shape clients render. Field names follow the
// mobile client.
type habitResponse struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	Frequency     string        `json:"frequency"`
	TargetDays    []string      `json:"targetDays"`
	TargetWeeks   []string      `json:"targetWeeks"`
	CustomDates   []string      `json:"customDates"`
	Completions   habits.Ledger `json:"completions"`
	Streak        int           `json:"streak"`
	LongestStreak int           `json:"longestStreak"`
	Reminder      *string       `json:"reminder"`
	Color         string        `json:"color"`
	Icon          string        `json:"icon"`
	IsActive      bool          `json:"isActive"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func toResponse(h *habits.Habit) habitResponse {
	completions := h.Completions
	if completions == nil {
		completions = habits.Ledger{}
	}
	return habitResponse{
		ID:            h.ID.String(),
		Title:         h.Title,
		Category:      h.Category,
		Frequency:     string(h.Schedule.Frequency),
		TargetDays:    nonNil(h.Schedule.DayLabels()),
		TargetWeeks:   nonNil(h.Schedule.WeekLabels()),
		CustomDates:   nonNil(h.Schedule.DateLabels()),
		Completions:   completions,
		Streak:        h.Streak.Current,
		LongestStreak: h.Streak.Longest,
		Reminder:      h.Reminder,
		Color:         h.Color,
		Icon:          h.Icon,
		IsActive:      h.Active,
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type createRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Category    string   `json:"category" validate:"max=100"`
	Frequency   string   `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
	TargetDays  []string `json:"targetDays" validate:"max=7"`
	TargetWeeks []string `json:"targetWeeks" validate:"max=5"`
	CustomDates []string `json:"customDates" validate:"max=366,dive,datetime=2006-01-02"`
	Reminder    *string  `json:"reminder" validate:"omitempty,max=32"`
	Color       string   `json:"color" validate:"omitempty,hexcolor"`
	Icon        string   `json:"icon" validate:"max=32"`
}

type updateRequest struct {
	Title       *string        `json:"title" validate:"omitempty,max=200"`
	Category    *string        `json:"category" validate:"omitempty,max=100"`
	Frequency   *string        `json:"frequency" validate:"omitempty,oneof=daily weekly monthly custom"`
	TargetDays  *[]string      `json:"targetDays" validate:"omitempty,max=7"`
	TargetWeeks *[]string      `json:"targetWeeks" validate:"omitempty,max=5"`
	CustomDates *[]string      `json:"customDates" validate:"omitempty,max=366,dive,datetime=2006-01-02"`
	Reminder    optionalString `json:"reminder"`
	Color       *string        `json:"color" validate:"omitempty,hexcolor"`
	Icon        *string        `json:"icon" validate:"omitempty,max=32"`
}

func (u updateRequest) touchesSchedule() bool {
	return u.Frequency != nil || u.TargetDays != nil || u.TargetWeeks != nil || u.CustomDates != nil
}

// optionalString tells an absent field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type deleteResponse struct {
	ID string `json:"id"`
}

type historyResponse struct {
	HabitID string        `json:"habitId"`
	From    habits.Date   `json:"from"`
	To      habits.Date   `json:"to"`
	Dates   []habits.Date `json:"dates"`
}
