package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,tenant_id,actor,action,entity_type,entity_id,before,after"

// DefaultFile is the audit log location relative to the project root.
const DefaultFile = "logs/audit-log.csv"

const (
	numFields     = 8
	colTimestamp  = 0
	colTenant     = 1
	colActor      = 2
	colAction     = 3
	colEntityType = 4
	colEntityID   = 5
	colBefore     = 6
	colAfter      = 7
)

// MarshalRecord converts a Record to a CSV row.
func MarshalRecord(r Record) []string {
	row := make([]string, numFields)
	row[colTimestamp] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colTenant] = r.TenantID
	row[colActor] = r.Actor
	row[colAction] = r.Action
	row[colEntityType] = r.EntityType
	row[colEntityID] = r.EntityID
	row[colBefore] = string(r.Before)
	row[colAfter] = string(r.After)
	return row
}

// UnmarshalRecord converts a CSV row to a Record.
func UnmarshalRecord(record []string) (Record, error) {
	if len(record) != numFields {
		return Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return Record{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	r := Record{
		Timestamp:  ts,
		TenantID:   record[colTenant],
		Actor:      record[colActor],
		Action:     record[colAction],
		EntityType: record[colEntityType],
		EntityID:   record[colEntityID],
	}
	if record[colBefore] != "" {
		r.Before = []byte(record[colBefore])
	}
	if record[colAfter] != "" {
		r.After = []byte(record[colAfter])
	}
	return r, nil
}

// CSVSink appends records to a CSV file, creating the file and header if
// needed.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink returns a sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Write appends one record.
func (s *CSVSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Append(s.path, []Record{rec})
}

// Append writes records to the CSV file at path.
func Append(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, r := range records {
		if err := cw.Write(MarshalRecord(r)); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing audit log: %w", err)
	}
	return f.Sync()
}

// Read returns all records from the CSV file at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readRecords(f)
}

func readRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(rows) <= 1 {
		return nil, nil
	}

	var records []Record
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
