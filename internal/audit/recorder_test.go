package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/audit"
	mock_audit "github.com/cleared-dev/ledger/internal/audit/mocks"
	"github.com/cleared-dev/ledger/internal/store"
)

var fixed = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func record() audit.Record {
	return audit.Record{TenantID: "acme", Actor: "alice", Action: audit.ActionPeriodClosed, EntityType: "accounting_period", EntityID: "p-1"}
}

func TestRecorder_Emit(t *testing.T) {
	errDown := errors.New("sink down")

	tests := []struct {
		name       string
		sinkErrs   []error
		parkErr    error
		wantParked bool
	}{
		{name: "first attempt succeeds", sinkErrs: []error{nil}},
		{name: "retry succeeds", sinkErrs: []error{errDown, errDown, nil}},
		{name: "all attempts fail, record parked", sinkErrs: []error{errDown, errDown, errDown, errDown}, wantParked: true},
		{name: "outbox fails too, operation still unaffected", sinkErrs: []error{errDown, errDown, errDown, errDown}, parkErr: errors.New("db gone"), wantParked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			sink := mock_audit.NewMockSink(ctrl)
			outbox := mock_audit.NewMockOutbox(ctrl)

			var calls []*gomock.Call
			for _, e := range tt.sinkErrs {
				calls = append(calls, sink.EXPECT().
					Write(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, rec audit.Record) error {
						assert.Equal(t, fixed, rec.Timestamp)
						return e
					}))
			}
			gomock.InOrder(calls...)
			if tt.wantParked {
				outbox.EXPECT().ParkAudit(gomock.Any(), gomock.Any(), "sink down").Return(tt.parkErr)
			}

			log, _ := test.NewNullLogger()
			rec := audit.NewRecorder(sink, outbox, log,
				audit.WithClock(func() time.Time { return fixed }),
				audit.WithRetry(3, time.Millisecond))
			rec.Emit(context.Background(), record())
		})
	}
}

func TestRecorder_FlushRedeliversParkedRecords(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer s.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sink := mock_audit.NewMockSink(ctrl)
	log, _ := test.NewNullLogger()
	rec := audit.NewRecorder(sink, s, log, audit.WithRetry(0, time.Millisecond))
	ctx := context.Background()

	sink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("sink down")).Times(2)
	rec.Emit(ctx, record())
	second := record()
	second.EntityID = "p-2"
	rec.Emit(ctx, second)

	// First redelivery attempt fails and leaves both parked.
	sink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))
	n, err := rec.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	var got []string
	sink.EXPECT().Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r audit.Record) error {
			got = append(got, r.EntityID)
			return nil
		}).Times(2)
	n, err = rec.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p-1", "p-2"}, got)

	items, err := s.PendingAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecorder_NoOutbox(t *testing.T) {
	mem := &audit.MemorySink{}
	log, hook := test.NewNullLogger()
	rec := audit.NewRecorder(mem, nil, log)
	rec.Emit(context.Background(), record())

	require.Len(t, mem.Records(), 1)
	assert.False(t, mem.Records()[0].Timestamp.IsZero())
	assert.Empty(t, hook.Entries)

	n, err := rec.Flush(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}
