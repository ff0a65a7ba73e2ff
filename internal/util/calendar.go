package util

import (
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"stockperf/internal/domain"
)

// TradingCalendar answers date questions in a market's local time zone.
type TradingCalendar struct {
	loc *time.Location
	now func() time.Time
}

// NewTradingCalendar creates a TradingCalendar for the named IANA zone. An
// empty name means Asia/Tokyo.
func NewTradingCalendar(zone string) (*TradingCalendar, error) {
	if zone == "" {
		zone = "Asia/Tokyo"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &TradingCalendar{loc: loc, now: time.Now}, nil
}

// FixedCalendar returns a calendar whose clock is frozen at t. Used by tests
// and backfills.
func FixedCalendar(t time.Time) *TradingCalendar {
	return &TradingCalendar{loc: t.Location(), now: func() time.Time { return t }}
}

// Location returns the calendar's time zone.
func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

// Today returns the current calendar date in the market's zone.
func (tc *TradingCalendar) Today() time.Time {
	return domain.Date(tc.now().In(tc.loc))
}
