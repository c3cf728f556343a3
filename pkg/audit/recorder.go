package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orgbase/orgbase/pkg/storage/postgres"
)

// Recorder writes log entries on a caller-supplied transaction; the
// transaction ties the entries to the mutation they describe.
type Recorder struct {
	written *prometheus.CounterVec
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Instrument counts every written entry on the given counter, labeled by
// event.
func (r *Recorder) Instrument(written *prometheus.CounterVec) {
	r.written = written
}

// RecordCreate emits the single CREATE entry for a new record.
func (r *Recorder) RecordCreate(ctx context.Context, q postgres.DBTX, record string) error {
	return r.insert(ctx, q, record, EventCreate, nil)
}

// RecordDelete emits the single DELETE entry for a removed record.
func (r *Recorder) RecordDelete(ctx context.Context, q postgres.DBTX, record string) error {
	return r.insert(ctx, q, record, EventDelete, nil)
}

// RecordUpdate diffs two snapshots against the whitelist and emits one UPDATE
// entry per changed field. Zero entries is a valid outcome.
func (r *Recorder) RecordUpdate(ctx context.Context, q postgres.DBTX, record string, before, after map[string]interface{}, fields []string) error {
	for _, change := range Diff(before, after, fields) {
		if err := r.insert(ctx, q, record, EventUpdate, &change); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) insert(ctx context.Context, q postgres.DBTX, record string, event Event, change *Change) error {
	var field interface{}
	var before, after interface{}
	if change != nil {
		field = change.Field
		var err error
		if before, err = marshalValue(change.Before); err != nil {
			return err
		}
		if after, err = marshalValue(change.After); err != nil {
			return err
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO logs (id, record, event, field, before, after)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), record, event, field, before, after)
	if err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	if r.written != nil {
		r.written.WithLabelValues(string(event)).Inc()
	}
	return nil
}

func marshalValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log value: %w", err)
	}
	return data, nil
}
