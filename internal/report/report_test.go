package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/backend/internal/domain"
)

func at(year int, month time.Month, day, hour int) *time.Time {
	t := time.Date(year, month, day, hour, 0, 0, 0, DefaultLocation)
	return &t
}

func sale(total int64, when *time.Time) domain.Sale {
	return domain.Sale{ID: "s", Quantity: 1, UnitPrice: decimal.NewFromInt(total), Total: decimal.NewFromInt(total), CreatedAt: when}
}

func outflow(amount int64, when *time.Time) domain.Outflow {
	return domain.Outflow{ID: "o", Reason: "Transporte", Amount: amount, CreatedAt: when}
}

func TestParsePeriodAcceptsSpanishAliases(t *testing.T) {
	cases := map[string]Period{
		"":       PeriodDay,
		"dia":    PeriodDay,
		"semana": PeriodWeek,
		"MES":    PeriodMonth,
		"anio":   PeriodYear,
		"year":   PeriodYear,
	}
	for raw, want := range cases {
		got, err := ParsePeriod(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParsePeriod("quarter")
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestDayWindowUsesLocalMidnight(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, DefaultLocation)
	w := DayWindow(date, DefaultLocation)

	assert.True(t, w.From.Equal(time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC)))
	assert.True(t, w.To.Equal(time.Date(2025, 3, 11, 5, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2025, 3, 11, 4, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(w.To))
}

func TestPeriodWindowStartsWeekOnSunday(t *testing.T) {
	// 2025-03-12 is a Wednesday.
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, DefaultLocation)

	week := PeriodWindow(PeriodWeek, now, DefaultLocation)
	assert.Equal(t, time.Sunday, week.From.Weekday())
	assert.Equal(t, 9, week.From.Day())
	assert.Equal(t, 13, week.To.Day())

	month := PeriodWindow(PeriodMonth, now, DefaultLocation)
	assert.Equal(t, 1, month.From.Day())

	year := PeriodWindow(PeriodYear, now, DefaultLocation)
	assert.Equal(t, time.January, year.From.Month())

	day := PeriodWindow(PeriodDay, now, DefaultLocation)
	assert.Equal(t, 24*time.Hour, day.To.Sub(day.From))
}

func TestClockParseDate(t *testing.T) {
	clock := Clock{Location: DefaultLocation, Now: func() time.Time {
		return time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC)
	}}

	today, err := clock.ParseDate("")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", today.Format("2006-01-02"))

	_, err = clock.ParseDate("10/03/2025")
	assert.Error(t, err)
}

func TestAggregateDayBucketBalance(t *testing.T) {
	chart := Aggregate(
		[]domain.Sale{sale(1000, at(2025, 3, 10, 9)), sale(2000, at(2025, 3, 10, 17))},
		[]domain.Outflow{outflow(500, at(2025, 3, 10, 12))},
		PeriodDay, DefaultLocation,
	)

	require.Len(t, chart.Buckets, 1)
	assert.Equal(t, "2025-03-10", chart.Labels[0])
	assert.True(t, chart.Balances[0].Equal(decimal.NewFromInt(2500)), chart.Balances[0].String())
	assert.Equal(t, int64(500), chart.Outflows[0])
	assert.False(t, chart.NoData)
}

func TestAggregateMonthBucketsSortChronologically(t *testing.T) {
	chart := Aggregate(
		[]domain.Sale{
			sale(100, at(2025, 2, 3, 10)),
			sale(200, at(2025, 2, 20, 10)),
			sale(300, at(2025, 1, 15, 10)),
			sale(400, at(2024, 12, 31, 10)),
		},
		nil, PeriodMonth, DefaultLocation,
	)

	assert.Equal(t, []string{"Dic 2024", "Ene 2025", "Feb 2025"}, chart.Labels)
	assert.True(t, chart.Sales[2].Equal(decimal.NewFromInt(300)))
}

func TestAggregateSkipsUndatedRecords(t *testing.T) {
	zero := time.Time{}
	chart := Aggregate(
		[]domain.Sale{sale(1000, nil), sale(1000, &zero)},
		[]domain.Outflow{outflow(10, nil)},
		PeriodYear, DefaultLocation,
	)

	assert.True(t, chart.NoData)
	assert.Empty(t, chart.Labels)
}

func TestAggregateBucketsUseLocalCalendar(t *testing.T) {
	// 02:00 UTC on the 11th is still the 10th in the business zone.
	late := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)
	chart := Aggregate([]domain.Sale{sale(100, &late)}, nil, PeriodDay, DefaultLocation)

	assert.Equal(t, []string{"2025-03-10"}, chart.Labels)
}

func TestAggregateConservesBalanceProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("bucket balances sum to the overall balance", prop.ForAll(
		func(saleTotals []int64, outflowAmounts []int64, dayOffsets []int) bool {
			base := time.Date(2025, 1, 1, 12, 0, 0, 0, DefaultLocation)
			offset := func(i int) *time.Time {
				d := 0
				if len(dayOffsets) > 0 {
					d = dayOffsets[i%len(dayOffsets)]
				}
				when := base.AddDate(0, 0, d)
				return &when
			}

			sales := make([]domain.Sale, 0, len(saleTotals))
			for i, total := range saleTotals {
				sales = append(sales, sale(total, offset(i)))
			}
			outflows := make([]domain.Outflow, 0, len(outflowAmounts))
			for i, amount := range outflowAmounts {
				outflows = append(outflows, outflow(amount, offset(i+1)))
			}

			want := Balance(sales, outflows)
			for _, period := range []Period{PeriodDay, PeriodMonth, PeriodYear} {
				chart := Aggregate(sales, outflows, period, DefaultLocation)
				sum := decimal.Zero
				for _, b := range chart.Balances {
					sum = sum.Add(b)
				}
				if !sum.Equal(want) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(1, 1_000_000)),
		gen.SliceOf(gen.Int64Range(1, 500_000)),
		gen.SliceOf(gen.IntRange(0, 400)),
	))

	properties.TestingRun(t)
}

func TestDisplayNamesFallsBackToNA(t *testing.T) {
	names := DisplayNames([]domain.UserProfile{{ID: "u1", Name: "Laura", Surname: "Gomez"}})

	assert.Equal(t, "Laura Gomez", names.NameOf("u1"))
	assert.Equal(t, "N/A", names.NameOf("u2"))
}

func TestMoneyGroupsThousands(t *testing.T) {
	assert.Equal(t, "$0", Money(decimal.Zero))
	assert.Equal(t, "$1.500", Money(decimal.RequireFromString("1500.4")))
	assert.Equal(t, "$1.234.567", Money(decimal.NewFromInt(1234567)))
	assert.Equal(t, "-$2.500", Money(decimal.NewFromInt(-2500)))
}

func testLedger() domain.DailyLedger {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, DefaultLocation)
	sales := []domain.Sale{{
		ID: "s1", ProductName: "Arroz, 1kg", Quantity: 2,
		UnitPrice: decimal.NewFromInt(4200), Total: decimal.NewFromInt(8400),
		CreatedAt: at(2025, 3, 10, 9), SellerID: "u1",
	}}
	outflows := []domain.Outflow{{ID: "o1", Reason: "<script>", Amount: 10000, CreatedAt: at(2025, 3, 10, 11), RecordedBy: "u9"}}
	return Ledger(date, DayWindow(date, DefaultLocation), sales, outflows)
}

func TestDailyCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DailyCSV(&buf, testLedger(), Names{"u1": "Laura Gomez"}, DefaultLocation))

	out := buf.String()
	assert.Contains(t, out, `"Arroz, 1kg"`)
	assert.Contains(t, out, "Laura Gomez")
	assert.Contains(t, out, "summary,,balance,,,-1600,")
}

func TestDailyHTMLEscapesAndColorsBalance(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DailyHTML(&buf, testLedger(), Names{"u1": "Laura Gomez"}, DefaultLocation))

	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `class="neg"`)
	assert.Contains(t, out, "09:00 AM")
	assert.Contains(t, out, "N/A")
}

func TestRenderDailyPDFProducesDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDailyPDF(&buf, testLedger(), Names{"u1": "Laura Gomez"}, DefaultLocation))

	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
	assert.Greater(t, buf.Len(), 500)
}
