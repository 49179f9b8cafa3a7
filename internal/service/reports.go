package service

import (
	"context"
	"time"

	"caja/backend/internal/domain"
	"caja/backend/internal/report"
)

func (s *Service) DailyLedger(ctx context.Context, date string) (domain.DailyLedger, error) {
	day, err := s.clock.ParseDate(date)
	if err != nil {
		return domain.DailyLedger{}, invalid("date", "fecha inválida, use AAAA-MM-DD")
	}
	return s.ledgerFor(ctx, day)
}

func (s *Service) ledgerFor(ctx context.Context, day time.Time) (domain.DailyLedger, error) {
	window := report.DayWindow(day, s.clock.Location)
	sales, err := s.repo.ListSales(ctx, window.From, window.To)
	if err != nil {
		return domain.DailyLedger{}, err
	}
	outflows, err := s.repo.ListOutflows(ctx, window.From, window.To)
	if err != nil {
		return domain.DailyLedger{}, err
	}
	return report.Ledger(day, window, sales, outflows), nil
}

func (s *Service) AggregatedChart(ctx context.Context, period string) (domain.Chart, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Chart{}, err
	}

	p, err := report.ParsePeriod(period)
	if err != nil {
		return domain.Chart{}, invalid("period", "periodo inválido, use dia, semana, mes o anio")
	}
	window := report.PeriodWindow(p, s.clock.LocalNow(), s.clock.Location)

	sales, err := s.repo.ListSales(ctx, window.From, window.To)
	if err != nil {
		return domain.Chart{}, err
	}
	outflows, err := s.repo.ListOutflows(ctx, window.From, window.To)
	if err != nil {
		return domain.Chart{}, err
	}

	chart := report.Aggregate(sales, outflows, p, s.clock.Location)
	chart.From = window.From
	chart.To = window.To
	return chart, nil
}

func (s *Service) UserDisplayNames(ctx context.Context) (report.Names, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return report.DisplayNames(profiles), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	day, err := s.clock.ParseDate(date)
	if err != nil {
		return nil, invalid("date", "fecha inválida, use AAAA-MM-DD")
	}
	window := report.DayWindow(day, s.clock.Location)
	return s.repo.ListAuditLogs(ctx, window.From, window.To, limit)
}
