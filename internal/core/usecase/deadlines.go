package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	defaultUpcomingDays = 7
	defaultUrgentLimit  = 10
)

type DeadlineUseCase struct {
	deadlines ports.DeadlineRepository
	holidays  domain.HolidaySet
	now       ports.Clock
}

func NewDeadlineUseCase(deadlines ports.DeadlineRepository, holidays domain.HolidaySet, now ports.Clock) *DeadlineUseCase {
	if now == nil {
		now = time.Now
	}
	if holidays == nil {
		holidays = domain.NoHolidays{}
	}
	return &DeadlineUseCase{deadlines: deadlines, holidays: holidays, now: now}
}

func (uc *DeadlineUseCase) List(ctx context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error) {
	items, err := uc.deadlines.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return items, nil
}

func (uc *DeadlineUseCase) Upcoming(ctx context.Context, clientID *int64, days int) ([]domain.Deadline, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	from := domain.DateOf(uc.now())
	to := from.AddDate(0, 0, days)
	open := false
	return uc.List(ctx, domain.DeadlineFilter{ClientID: clientID, Completed: &open, From: &from, To: &to})
}

func (uc *DeadlineUseCase) Stats(ctx context.Context, clientID *int64) (domain.DeadlineStats, error) {
	stats, err := uc.deadlines.Stats(ctx, clientID)
	if err != nil {
		return domain.DeadlineStats{}, fmt.Errorf("deadline stats: %w", err)
	}
	return stats, nil
}

// Urgent ranks open deadlines overdue, critical, high, medium, low, then by date.
func (uc *DeadlineUseCase) Urgent(ctx context.Context, clientID *int64, limit int) ([]domain.UrgentDeadline, error) {
	if limit <= 0 {
		limit = defaultUrgentLimit
	}
	items, err := uc.deadlines.ListUrgent(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list urgent deadlines: %w", err)
	}

	open := items[:0]
	for _, item := range items {
		if !item.Completed {
			open = append(open, item)
		}
	}
	domain.SortByUrgency(open)
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (uc *DeadlineUseCase) SetCompleted(ctx context.Context, id int64, completed bool) (*domain.Deadline, error) {
	deadline, err := uc.deadlines.SetCompleted(ctx, id, completed, uc.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("set deadline completion: %w", err)
	}
	return deadline, nil
}

// RefreshRisk recomputes working days and risk for every open deadline and
// returns how many rows changed.
func (uc *DeadlineUseCase) RefreshRisk(ctx context.Context) (int, error) {
	open := false
	items, err := uc.deadlines.List(ctx, domain.DeadlineFilter{Completed: &open})
	if err != nil {
		return 0, fmt.Errorf("list open deadlines: %w", err)
	}

	today := domain.DateOf(uc.now())
	updated := 0
	for _, item := range items {
		days, risk := domain.AssessDeadline(item.Date, today, uc.holidays)
		if days == item.WorkingDaysRemaining && risk == item.RiskLevel {
			continue
		}
		if err := uc.deadlines.UpdateRisk(ctx, item.ID, days, risk); err != nil {
			return updated, fmt.Errorf("update deadline %d risk: %w", item.ID, err)
		}
		updated++
	}
	slog.Info("deadline_risk_refreshed", "open", len(items), "updated", updated)
	return updated, nil
}
