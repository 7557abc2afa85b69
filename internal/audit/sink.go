package audit

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// LogSink writes records to a logrus logger.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

// Write logs one record.
func (s *LogSink) Write(_ context.Context, rec Record) error {
	s.log.WithFields(logrus.Fields{
		"tenant":      rec.TenantID,
		"actor":       rec.Actor,
		"entity_type": rec.EntityType,
		"entity_id":   rec.EntityID,
	}).Info(rec.Action)
	return nil
}

// MultiSink fans a record out to every sink. It fails if any sink fails,
// after trying all of them.
type MultiSink []Sink

// Write delivers rec to every sink.
func (m MultiSink) Write(ctx context.Context, rec Record) error {
	var result *multierror.Error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// Write stores rec.
func (m *MemorySink) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything written so far.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Actions returns the action of every record in order.
func (m *MemorySink) Actions() []string {
	recs := m.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}
