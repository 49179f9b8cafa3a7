package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"caja/backend/internal/domain"
)

var monthAbbrev = [...]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

func SalesTotal(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Total)
	}
	return total
}

func OutflowsTotal(outflows []domain.Outflow) int64 {
	var total int64
	for _, outflow := range outflows {
		total += outflow.Amount
	}
	return total
}

func Balance(sales []domain.Sale, outflows []domain.Outflow) decimal.Decimal {
	return SalesTotal(sales).Sub(decimal.NewFromInt(OutflowsTotal(outflows)))
}

// Ledger assembles the daily table for one window.
func Ledger(date time.Time, window Window, sales []domain.Sale, outflows []domain.Outflow) domain.DailyLedger {
	if sales == nil {
		sales = []domain.Sale{}
	}
	if outflows == nil {
		outflows = []domain.Outflow{}
	}
	salesTotal := SalesTotal(sales)
	outflowsTotal := OutflowsTotal(outflows)
	return domain.DailyLedger{
		Date:          date.Format("2006-01-02"),
		From:          window.From,
		To:            window.To,
		Sales:         sales,
		Outflows:      outflows,
		SalesTotal:    salesTotal,
		OutflowsTotal: outflowsTotal,
		Balance:       salesTotal.Sub(decimal.NewFromInt(outflowsTotal)),
	}
}

// bucketKey returns a key that sorts chronologically plus its display label.
func bucketKey(at time.Time, period Period) (string, string) {
	switch period {
	case PeriodYear:
		key := at.Format("2006")
		return key, key
	case PeriodMonth:
		return at.Format("2006-01"), fmt.Sprintf("%s %d", monthAbbrev[at.Month()-1], at.Year())
	default:
		key := at.Format("2006-01-02")
		return key, key
	}
}

// Aggregate groups sales and outflows into period buckets. Records without a
// timestamp are skipped.
func Aggregate(sales []domain.Sale, outflows []domain.Outflow, period Period, loc *time.Location) domain.Chart {
	if loc == nil {
		loc = DefaultLocation
	}
	buckets := make(map[string]*domain.ChartBucket)
	bucketFor := func(at time.Time) *domain.ChartBucket {
		key, label := bucketKey(at.In(loc), period)
		b, ok := buckets[key]
		if !ok {
			b = &domain.ChartBucket{Key: key, Label: label, Sales: decimal.Zero, Balance: decimal.Zero}
			buckets[key] = b
		}
		return b
	}

	for _, sale := range sales {
		if sale.CreatedAt == nil || sale.CreatedAt.IsZero() {
			continue
		}
		b := bucketFor(*sale.CreatedAt)
		b.Sales = b.Sales.Add(sale.Total)
		b.Balance = b.Balance.Add(sale.Total)
	}
	for _, outflow := range outflows {
		if outflow.CreatedAt == nil || outflow.CreatedAt.IsZero() {
			continue
		}
		b := bucketFor(*outflow.CreatedAt)
		b.Outflows += outflow.Amount
		b.Balance = b.Balance.Sub(decimal.NewFromInt(outflow.Amount))
	}

	chart := domain.Chart{
		Period:   string(period),
		Labels:   make([]string, 0, len(buckets)),
		Balances: make([]decimal.Decimal, 0, len(buckets)),
		Sales:    make([]decimal.Decimal, 0, len(buckets)),
		Outflows: make([]int64, 0, len(buckets)),
		Buckets:  make([]domain.ChartBucket, 0, len(buckets)),
	}
	for _, b := range buckets {
		chart.Buckets = append(chart.Buckets, *b)
	}
	slices.SortFunc(chart.Buckets, func(a, b domain.ChartBucket) int {
		return strings.Compare(a.Key, b.Key)
	})
	for _, b := range chart.Buckets {
		chart.Labels = append(chart.Labels, b.Label)
		chart.Balances = append(chart.Balances, b.Balance)
		chart.Sales = append(chart.Sales, b.Sales)
		chart.Outflows = append(chart.Outflows, b.Outflows)
	}
	chart.NoData = len(chart.Buckets) == 0
	return chart
}

type Names map[string]string

func DisplayNames(profiles []domain.UserProfile) Names {
	names := make(Names, len(profiles))
	for _, profile := range profiles {
		names[profile.ID] = profile.DisplayName()
	}
	return names
}

func (n Names) NameOf(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return "N/A"
}
