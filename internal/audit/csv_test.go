package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func testRecord() Record {
	return Record{
		Timestamp:  testTime,
		TenantID:   "acme",
		Actor:      "alice",
		Action:     ActionEntryPosted,
		EntityType: "journal_entry",
		EntityID:   "e-1",
		After:      Snapshot(map[string]string{"number": "2025-03-001", "memo": "Invoice, March"}),
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Append(path, []Record{testRecord()}))

	records, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Actor)
}

func TestAppend_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Append(path, []Record{testRecord()}))

	r2 := testRecord()
	r2.Action = ActionEntryVoided
	require.NoError(t, Append(path, []Record{r2}))

	records, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, ActionEntryPosted, records[0].Action)
	assert.Equal(t, ActionEntryVoided, records[1].Action)
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	original := testRecord()
	require.NoError(t, Append(path, []Record{original}))

	records, err := Read(path)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, original.TenantID, got.TenantID)
	assert.Equal(t, original.EntityID, got.EntityID)
	assert.JSONEq(t, string(original.After), string(got.After))
	assert.Nil(t, got.Before)
}

func TestRead_NotFound(t *testing.T) {
	records, err := Read(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestRead_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n"), 0o644))

	records, err := Read(path)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Append(path, []Record{testRecord()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, Header, lines[0])
}

func TestUnmarshalRecord_Errors(t *testing.T) {
	_, err := UnmarshalRecord([]string{"too", "few"})
	assert.Error(t, err)

	row := MarshalRecord(testRecord())
	row[colTimestamp] = "yesterday"
	_, err = UnmarshalRecord(row)
	assert.Error(t, err)
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	sink := NewCSVSink(path)
	require.NoError(t, sink.Write(context.Background(), testRecord()))

	records, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, Record) error { return f.err }

func TestMultiSink(t *testing.T) {
	mem := &MemorySink{}
	log, hook := test.NewNullLogger()

	ok := MultiSink{mem, NewLogSink(log)}
	require.NoError(t, ok.Write(context.Background(), testRecord()))
	assert.Equal(t, []string{ActionEntryPosted}, mem.Actions())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "acme", hook.LastEntry().Data["tenant"])

	boom := errors.New("disk full")
	mixed := MultiSink{failingSink{boom}, mem}
	err := mixed.Write(context.Background(), testRecord())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.Records(), 2, "later sinks still receive the record")
}
