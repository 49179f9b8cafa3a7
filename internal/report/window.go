package report

import (
	"errors"
	"strings"
	"time"
)

var ErrUnknownPeriod = errors.New("unknown period")

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// DefaultLocation is the cash register's business zone (Colombia, no DST).
var DefaultLocation = time.FixedZone("UTC-5", -5*3600)

func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "day", "dia", "día":
		return PeriodDay, nil
	case "week", "semana":
		return PeriodWeek, nil
	case "month", "mes":
		return PeriodMonth, nil
	case "year", "anio", "año":
		return PeriodYear, nil
	default:
		return "", ErrUnknownPeriod
	}
}

type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = DefaultLocation
	}
	return Clock{Location: loc, Now: time.Now}
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return DefaultLocation
	}
	return c.Location
}

func (c Clock) LocalNow() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.loc())
}

// Today is the current calendar date in the clock's zone.
func (c Clock) Today() time.Time {
	n := c.LocalNow()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc())
}

// ParseDate reads a YYYY-MM-DD date in the clock's zone. An empty value
// means today.
func (c Clock) ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return c.Today(), nil
	}
	return time.ParseInLocation("2006-01-02", raw, c.loc())
}

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(at time.Time) bool {
	return !at.Before(w.From) && at.Before(w.To)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func DayWindow(date time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = DefaultLocation
	}
	from := startOfDay(date, loc)
	return Window{From: from, To: from.AddDate(0, 0, 1)}
}

// PeriodWindow runs from the start of the period containing now up to the
// start of tomorrow. Weeks start on Sunday.
func PeriodWindow(period Period, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = DefaultLocation
	}
	today := startOfDay(now, loc)
	end := today.AddDate(0, 0, 1)

	var from time.Time
	switch period {
	case PeriodWeek:
		from = today.AddDate(0, 0, -int(today.Weekday()))
	case PeriodMonth:
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	case PeriodYear:
		from = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		from = today
	}
	return Window{From: from, To: end}
}
