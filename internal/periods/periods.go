// Package periods manages accounting periods: their calendar, their open or
// closed state and the locks that serialize writes inside one period.
package periods

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Store is the persistence the manager needs.
//
//go:generate mockgen -destination=mocks/mock_store.go -source=periods.go Store
type Store interface {
	InsertPeriod(ctx context.Context, p model.AccountingPeriod) error
	GetPeriod(ctx context.Context, tenantID, periodID string) (model.AccountingPeriod, error)
	ListPeriods(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error)
	ClosePeriod(ctx context.Context, tenantID, periodID, actor string, at time.Time) (model.AccountingPeriod, error)
	SummarizePeriod(ctx context.Context, tenantID, periodID string) (store.PeriodSummary, error)
}

// Manager is the period manager. It is safe for concurrent use.
type Manager struct {
	store Store
	audit audit.Emitter
	log   logrus.FieldLogger
	now   func() time.Time

	mu        sync.Mutex
	calendars map[string]*calendar
	locks     map[string]*sync.Mutex
}

// NewManager creates a Manager over st.
func NewManager(st Store, em audit.Emitter, log logrus.FieldLogger) *Manager {
	return &Manager{
		store:     st,
		audit:     em,
		log:       log,
		now:       time.Now,
		calendars: make(map[string]*calendar),
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the time source used for closing timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Lock acquires the write lock of one period and returns its release func.
// Posting, draft saves, voids and closing all run under it.
func (m *Manager) Lock(tenantID, periodID string) (unlock func()) {
	key := tenantID + "/" + periodID
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// calendarFor returns the tenant's index, loading it from the store when it
// is missing or reload is set.
func (m *Manager) calendarFor(ctx context.Context, tenantID string, reload bool) (*calendar, error) {
	m.mu.Lock()
	cal, ok := m.calendars[tenantID]
	m.mu.Unlock()
	if ok && !reload {
		return cal, nil
	}

	ps, err := m.store.ListPeriods(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading periods: %w", err)
	}
	cal = newCalendar(ps)

	m.mu.Lock()
	m.calendars[tenantID] = cal
	m.mu.Unlock()
	return cal, nil
}

// CreatePeriodParams describes a new period. Dates are inclusive civil days.
type CreatePeriodParams struct {
	TenantID string
	Name     string
	Start    time.Time
	End      time.Time
	Actor    string
}

// CreatePeriod adds a period to the tenant calendar. The first period may
// start anywhere; later ones must extend the calendar at either end without
// a gap.
func (m *Manager) CreatePeriod(ctx context.Context, p CreatePeriodParams) (model.AccountingPeriod, error) {
	start, end := model.Day(p.Start), model.Day(p.End)
	if end.Before(start) {
		return model.AccountingPeriod{}, model.Invalid(model.CodeInvalidPeriod,
			"period ends %s before it starts %s", end.Format(model.DateFormat), start.Format(model.DateFormat))
	}
	name := p.Name
	if name == "" {
		name = start.Format("2006-01")
	}

	unlock := m.Lock(p.TenantID, "calendar")
	defer unlock()

	cal, err := m.calendarFor(ctx, p.TenantID, true)
	if err != nil {
		return model.AccountingPeriod{}, err
	}
	if other, ok := cal.overlapping(start, end); ok {
		return model.AccountingPeriod{}, model.Invalid(model.CodePeriodOverlap,
			"period %s-%s overlaps %s", start.Format(model.DateFormat), end.Format(model.DateFormat), other.Name)
	}
	if !cal.extends(start, end) {
		return model.AccountingPeriod{}, model.Invalid(model.CodePeriodNotContiguous,
			"period %s-%s leaves a gap in the calendar", start.Format(model.DateFormat), end.Format(model.DateFormat))
	}

	period := model.AccountingPeriod{ID: id.New(), TenantID: p.TenantID, Name: name, StartDate: start, EndDate: end}
	if err := m.store.InsertPeriod(ctx, period); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.AccountingPeriod{}, model.Invalid(model.CodePeriodOverlap, "a period already starts on %s", start.Format(model.DateFormat))
		}
		return model.AccountingPeriod{}, fmt.Errorf("creating period %s: %w", name, err)
	}
	cal.put(period)

	m.log.WithFields(logrus.Fields{"tenant": p.TenantID, "period": name}).Info("period created")
	m.audit.Emit(ctx, audit.Record{
		TenantID: p.TenantID, Actor: p.Actor, Action: audit.ActionPeriodCreated,
		EntityType: "accounting_period", EntityID: period.ID, After: audit.Snapshot(period),
	})
	return period, nil
}

// PeriodFor returns the period containing date, with its current state read
// from the store. No covering period yields StateError NoPeriod.
func (m *Manager) PeriodFor(ctx context.Context, tenantID string, date time.Time) (model.AccountingPeriod, error) {
	for _, reload := range []bool{false, true} {
		cal, err := m.calendarFor(ctx, tenantID, reload)
		if err != nil {
			return model.AccountingPeriod{}, err
		}
		if p, ok := cal.find(date); ok {
			return m.store.GetPeriod(ctx, tenantID, p.ID)
		}
	}
	return model.AccountingPeriod{}, &model.StateError{
		Code: model.CodeNoPeriod, Entity: "accounting_period", ID: model.Day(date).Format(model.DateFormat),
	}
}

// IsOpen reports whether date falls in an open period. A date outside the
// calendar is not open.
func (m *Manager) IsOpen(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	p, err := m.PeriodFor(ctx, tenantID, date)
	if model.HasCode(err, model.CodeNoPeriod) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !p.IsClosed, nil
}

// Get returns one period.
func (m *Manager) Get(ctx context.Context, tenantID, periodID string) (model.AccountingPeriod, error) {
	return m.store.GetPeriod(ctx, tenantID, periodID)
}

// List returns the tenant's periods in calendar order.
func (m *Manager) List(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error) {
	return m.store.ListPeriods(ctx, tenantID)
}

// ClosePeriod closes a period under its lock. It fails with AlreadyClosed, or
// with UnpostedDrafts carrying the draft ids. There is no way to reopen.
func (m *Manager) ClosePeriod(ctx context.Context, tenantID, periodID, actor string) (model.AccountingPeriod, error) {
	unlock := m.Lock(tenantID, periodID)
	defer unlock()

	before, err := m.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return model.AccountingPeriod{}, err
	}
	closed, err := m.store.ClosePeriod(ctx, tenantID, periodID, actor, m.now())
	if err != nil {
		return model.AccountingPeriod{}, err
	}

	m.log.WithFields(logrus.Fields{"tenant": tenantID, "period": closed.Name, "actor": actor}).Info("period closed")
	m.audit.Emit(ctx, audit.Record{
		TenantID: tenantID, Actor: actor, Action: audit.ActionPeriodClosed, EntityType: "accounting_period",
		EntityID: periodID, Before: audit.Snapshot(before), After: audit.Snapshot(closed),
	})
	return closed, nil
}

// ClosureReport tells whether a period can be closed.
type ClosureReport struct {
	Period      model.AccountingPeriod
	DraftIDs    []string
	PostedCount int
	VoidCount   int
	TotalDebit  int64
	TotalCredit int64
	Balanced    bool
	Ready       bool
}

// CheckClosure reports the drafts and posting totals of a period.
func (m *Manager) CheckClosure(ctx context.Context, tenantID, periodID string) (ClosureReport, error) {
	p, err := m.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ClosureReport{}, err
	}
	sum, err := m.store.SummarizePeriod(ctx, tenantID, periodID)
	if err != nil {
		return ClosureReport{}, fmt.Errorf("summarizing period %s: %w", p.Name, err)
	}
	r := ClosureReport{
		Period:      p,
		DraftIDs:    sum.DraftIDs,
		PostedCount: sum.PostedCount,
		VoidCount:   sum.VoidCount,
		TotalDebit:  sum.TotalDebit,
		TotalCredit: sum.TotalCredit,
		Balanced:    sum.TotalDebit == sum.TotalCredit,
	}
	r.Ready = !p.IsClosed && len(r.DraftIDs) == 0 && r.Balanced
	return r, nil
}
