package periods_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/periods"
	mock_periods "github.com/cleared-dev/ledger/internal/periods/mocks"
	"github.com/cleared-dev/ledger/internal/store"
)

const tenant = "acme"

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	jan = model.AccountingPeriod{ID: "jan", TenantID: tenant, Name: "2025-01", StartDate: day("2025-01-01"), EndDate: day("2025-01-31")}
	feb = model.AccountingPeriod{ID: "feb", TenantID: tenant, Name: "2025-02", StartDate: day("2025-02-01"), EndDate: day("2025-02-28")}
)

func newManager(t *testing.T) (*periods.Manager, *mock_periods.MockStore, *audit.MemorySink) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	st := mock_periods.NewMockStore(ctrl)
	mem := &audit.MemorySink{}
	return periods.NewManager(st, audit.NewRecorder(mem, nil, logging.Discard()), logging.Discard()), st, mem
}

func TestCreatePeriod(t *testing.T) {
	tests := []struct {
		name     string
		existing []model.AccountingPeriod
		start    string
		end      string
		insert   bool
		wantCode model.Code
	}{
		{name: "first period", start: "2025-01-01", end: "2025-01-31", insert: true},
		{name: "extends the end", existing: []model.AccountingPeriod{jan}, start: "2025-02-01", end: "2025-02-28", insert: true},
		{name: "extends the start", existing: []model.AccountingPeriod{jan}, start: "2024-12-01", end: "2024-12-31", insert: true},
		{name: "end before start", start: "2025-01-31", end: "2025-01-01", wantCode: model.CodeInvalidPeriod},
		{name: "overlap", existing: []model.AccountingPeriod{jan, feb}, start: "2025-02-15", end: "2025-03-14", wantCode: model.CodePeriodOverlap},
		{name: "gap", existing: []model.AccountingPeriod{jan}, start: "2025-03-01", end: "2025-03-31", wantCode: model.CodePeriodNotContiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, st, mem := newManager(t)
			if tt.wantCode != model.CodeInvalidPeriod {
				st.EXPECT().ListPeriods(gomock.Any(), tenant).Return(tt.existing, nil)
			}
			if tt.insert {
				st.EXPECT().InsertPeriod(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p model.AccountingPeriod) error {
						assert.Equal(t, day(tt.start), p.StartDate)
						assert.Equal(t, day(tt.end), p.EndDate)
						return nil
					})
			}

			p, err := mgr.CreatePeriod(context.Background(), periods.CreatePeriodParams{
				TenantID: tenant, Start: day(tt.start), End: day(tt.end), Actor: "alice",
			})
			if tt.wantCode != "" {
				assert.True(t, model.HasCode(err, tt.wantCode), "got %v", err)
				assert.Empty(t, mem.Records())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, day(tt.start).Format("2006-01"), p.Name)
			assert.Equal(t, []string{audit.ActionPeriodCreated}, mem.Actions())
		})
	}
}

func TestCreatePeriod_DuplicateStart(t *testing.T) {
	mgr, st, _ := newManager(t)
	st.EXPECT().ListPeriods(gomock.Any(), tenant).Return(nil, nil)
	st.EXPECT().InsertPeriod(gomock.Any(), gomock.Any()).Return(store.ErrDuplicate)

	_, err := mgr.CreatePeriod(context.Background(), periods.CreatePeriodParams{
		TenantID: tenant, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	assert.True(t, model.HasCode(err, model.CodePeriodOverlap))
}

func TestPeriodFor(t *testing.T) {
	mgr, st, _ := newManager(t)
	ctx := context.Background()

	closedJan := jan
	closedJan.IsClosed = true
	st.EXPECT().ListPeriods(gomock.Any(), tenant).Return([]model.AccountingPeriod{jan, feb}, nil)
	st.EXPECT().GetPeriod(gomock.Any(), tenant, "jan").Return(closedJan, nil).Times(2)

	p, err := mgr.PeriodFor(ctx, tenant, day("2025-01-15"))
	require.NoError(t, err)
	assert.True(t, p.IsClosed, "state comes from the store, not the index")

	open, err := mgr.IsOpen(ctx, tenant, day("2025-01-20"))
	require.NoError(t, err)
	assert.False(t, open)

	// A miss reloads the calendar once before giving up.
	st.EXPECT().ListPeriods(gomock.Any(), tenant).Return([]model.AccountingPeriod{jan, feb}, nil)
	_, err = mgr.PeriodFor(ctx, tenant, day("2025-06-01"))
	var serr *model.StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, model.CodeNoPeriod, serr.Code)

	st.EXPECT().ListPeriods(gomock.Any(), tenant).Return([]model.AccountingPeriod{jan, feb}, nil)
	open, err = mgr.IsOpen(ctx, tenant, day("2025-06-01"))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestPeriodFor_StoreError(t *testing.T) {
	mgr, st, _ := newManager(t)
	boom := errors.New("disk I/O error")
	st.EXPECT().ListPeriods(gomock.Any(), tenant).Return(nil, boom)

	_, err := mgr.PeriodFor(context.Background(), tenant, day("2025-01-15"))
	assert.ErrorIs(t, err, boom)
}

func TestClosePeriod(t *testing.T) {
	mgr, st, mem := newManager(t)
	at := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	mgr.SetClock(func() time.Time { return at })

	closed := jan
	closed.IsClosed = true
	closed.ClosedBy = "bob"
	closed.ClosedAt = at
	st.EXPECT().GetPeriod(gomock.Any(), tenant, "jan").Return(jan, nil)
	st.EXPECT().ClosePeriod(gomock.Any(), tenant, "jan", "bob", at).Return(closed, nil)

	got, err := mgr.ClosePeriod(context.Background(), tenant, "jan", "bob")
	require.NoError(t, err)
	assert.True(t, got.IsClosed)

	recs := mem.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, audit.ActionPeriodClosed, recs[0].Action)
	assert.Equal(t, "bob", recs[0].Actor)
	assert.NotEmpty(t, recs[0].Before)
	assert.NotEmpty(t, recs[0].After)
}

func TestClosePeriod_Refused(t *testing.T) {
	mgr, st, mem := newManager(t)
	refusal := &model.StateError{Code: model.CodeUnpostedDrafts, Entity: "accounting_period", ID: "jan", Offending: []string{"d1"}}
	st.EXPECT().GetPeriod(gomock.Any(), tenant, "jan").Return(jan, nil)
	st.EXPECT().ClosePeriod(gomock.Any(), tenant, "jan", "bob", gomock.Any()).Return(model.AccountingPeriod{}, refusal)

	_, err := mgr.ClosePeriod(context.Background(), tenant, "jan", "bob")
	var serr *model.StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"d1"}, serr.Offending)
	assert.Empty(t, mem.Records(), "refused close is not audited")
}

func TestCheckClosure(t *testing.T) {
	mgr, st, _ := newManager(t)
	st.EXPECT().GetPeriod(gomock.Any(), tenant, "jan").Return(jan, nil).Times(2)
	st.EXPECT().SummarizePeriod(gomock.Any(), tenant, "jan").Return(store.PeriodSummary{
		DraftIDs: []string{"d1"}, PostedCount: 3, TotalDebit: 900, TotalCredit: 900,
	}, nil)
	st.EXPECT().SummarizePeriod(gomock.Any(), tenant, "jan").Return(store.PeriodSummary{
		PostedCount: 4, TotalDebit: 1000, TotalCredit: 1000,
	}, nil)

	r, err := mgr.CheckClosure(context.Background(), tenant, "jan")
	require.NoError(t, err)
	assert.True(t, r.Balanced)
	assert.False(t, r.Ready)
	assert.Equal(t, []string{"d1"}, r.DraftIDs)

	r, err = mgr.CheckClosure(context.Background(), tenant, "jan")
	require.NoError(t, err)
	assert.True(t, r.Ready)
}

func TestLockSerializesOnePeriod(t *testing.T) {
	mgr, _, _ := newManager(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := mgr.Lock(tenant, "jan")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different periods do not block each other.
	unlockJan := mgr.Lock(tenant, "jan")
	defer unlockJan()
	done := make(chan struct{})
	go func() {
		unlock := mgr.Lock(tenant, "feb")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on feb blocked by jan")
	}
}
