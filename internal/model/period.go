package model

import "time"

// AccountingPeriod is a closed date range [StartDate, EndDate] of a tenant's
// calendar. Periods of a tenant are contiguous and never overlap.
type AccountingPeriod struct {
	ID        string
	TenantID  string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsClosed  bool
	ClosedAt  time.Time
	ClosedBy  string
}

// Contains reports whether date falls inside the period (inclusive).
func (p AccountingPeriod) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
