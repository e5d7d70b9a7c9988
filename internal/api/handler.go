// Package api contains the JSON handlers mounted under /api/habits.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/auth"
	"github.com/jw6ventures/habitplanner/internal/habits"
	"github.com/jw6ventures/habitplanner/internal/http/apierror"
	"github.com/jw6ventures/habitplanner/internal/store"
	"github.com/jw6ventures/habitplanner/internal/tracker"
)

const maxBodyBytes = 64 << 10

// Tracker is the subset of tracker.Service the handlers use.
type Tracker interface {
	Stats(ctx context.Context, owner uuid.UUID) (habits.Stats, error)
	List(ctx context.Context, owner uuid.UUID, frequency string) ([]habits.Habit, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*habits.Habit, error)
	Create(ctx context.Context, owner uuid.UUID, d tracker.Draft) (*habits.Habit, error)
	Update(ctx context.Context, owner, id uuid.UUID, p tracker.Patch) (*habits.Habit, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	ToggleCompletion(ctx context.Context, owner, id uuid.UUID) (*habits.Habit, error)
	History(ctx context.Context, owner, id uuid.UUID, from, to habits.Date) (tracker.History, error)
}

// Handler serves the habit API for the authenticated user.
type Handler struct {
	tracker  Tracker
	log      *zap.Logger
	validate *validator.Validate
}

func New(t Tracker, log *zap.Logger, v *validator.Validate) *Handler {
	if v == nil {
		v = NewValidator()
	}
	return &Handler{tracker: t, log: log, validate: v}
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes mounts the handlers. /stats is registered before /{id}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/stats", h.Stats)
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/complete", h.ToggleCompletion)
	r.Get("/{id}/history", h.History)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	stats, err := h.tracker.Stats(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stats.WeeklyActivity == nil {
		stats.WeeklyActivity = []habits.DayCount{}
	}
	apierror.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	list, err := h.tracker.List(r.Context(), owner, r.URL.Query().Get("frequency"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]habitResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	apierror.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	sched, err := habits.ParseSchedule(req.Frequency, req.TargetDays, req.TargetWeeks, req.CustomDates)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.tracker.Create(r.Context(), owner, tracker.Draft{
		Title:    req.Title,
		Category: req.Category,
		Schedule: sched,
		Reminder: req.Reminder,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}
	habit, err := h.tracker.Get(r.Context(), owner, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, toResponse(habit))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := tracker.Patch{
		Title:         req.Title,
		Category:      req.Category,
		Color:         req.Color,
		Icon:          req.Icon,
		Reminder:      req.Reminder.Value,
		ClearReminder: req.Reminder.Set && req.Reminder.Value == nil,
	}
	if req.touchesSchedule() {
		current, err := h.tracker.Get(r.Context(), owner, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		sched, err := mergeSchedule(current.Schedule, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		patch.Schedule = &sched
	}

	updated, err := h.tracker.Update(r.Context(), owner, id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, toResponse(updated))
}

// mergeSchedule overlays the schedule fields of req on cur. Changing the
// frequency drops selectors that were not resent.
func mergeSchedule(cur habits.Schedule, req updateRequest) (habits.Schedule, error) {
	freq := string(cur.Frequency)
	days, weeks, dates := cur.DayLabels(), cur.WeekLabels(), cur.DateLabels()
	if req.Frequency != nil && !strings.EqualFold(*req.Frequency, freq) {
		freq = *req.Frequency
		days, weeks, dates = nil, nil, nil
	}
	if req.TargetDays != nil {
		days = *req.TargetDays
	}
	if req.TargetWeeks != nil {
		weeks = *req.TargetWeeks
	}
	if req.CustomDates != nil {
		dates = *req.CustomDates
	}
	return habits.ParseSchedule(freq, days, weeks, dates)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.tracker.Delete(r.Context(), owner, id); err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, deleteResponse{ID: id.String()})
}

func (h *Handler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}
	habit, err := h.tracker.ToggleCompletion(r.Context(), owner, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, toResponse(habit))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var from, to habits.Date
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *habits.Date
	}{{"from", &from}, {"to", &to}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := habits.ParseDate(raw)
		if err != nil {
			h.fail(w, r, fmt.Errorf("query %s: %w", p.name, err))
			return
		}
		*p.dst = d
	}

	hist, err := h.tracker.History(r.Context(), owner, id, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, historyResponse{
		HabitID: id.String(),
		From:    hist.From,
		To:      hist.To,
		Dates:   hist.Dates,
	})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.fail(w, r, apierror.ErrUnauthorized)
		return uuid.Nil, false
	}
	return user.ID, true
}

// target resolves the caller and the {id} path parameter. A malformed id
// cannot name an existing habit and is reported as not found.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed habit id", store.ErrNotFound))
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, fmt.Errorf("%w: body exceeds %d bytes", apierror.ErrBadRequest, maxBodyBytes))
			return false
		}
		h.fail(w, r, fmt.Errorf("%w: invalid request payload", apierror.ErrBadRequest))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apierror.Write(w, r, h.log, err)
}
