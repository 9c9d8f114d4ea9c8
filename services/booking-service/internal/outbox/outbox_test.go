package outbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

var outboxColumns = []string{"id", "event_id", "tenant_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := Event{
		EventID:       "6f1c1c1e-7f43-4a55-9a53-0a8f6a1d1c11",
		TenantID:      "tenant-1",
		AggregateType: "appointment",
		AggregateID:   "appt-1",
		EventType:     EventAppointmentReserved,
		Payload:       []byte(`{"appointment_id":"appt-1"}`),
	}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(evt.EventID, evt.TenantID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Insert(context.Background(), mock, evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatch(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(7), "evt-7", "tenant-1", "appointment", "appt-7", EventAppointmentReserved, []byte(`{}`), traceparent, "", time.Now()).
			AddRow(int64(8), "evt-8", "tenant-1", "appointment", "appt-8", EventAppointmentReserved, []byte(`{}`), "", "", time.Now()))
	mock.ExpectExec("UPDATE outbox_events SET published_at").
		WithArgs([]int64{7, 8}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	writer := &fakeWriter{}
	p := NewPublisher(mock, writer, testLogger(), PublisherConfig{BatchSize: 10})

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, writer.msgs, 2)

	first := writer.msgs[0]
	assert.Equal(t, EventAppointmentReserved, first.Topic)
	assert.Equal(t, "appt-7", string(first.Key))
	headers := map[string]string{}
	for _, h := range first.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "evt-7", headers["event_id"])
	assert.Equal(t, "tenant-1", headers["tenant_id"])
	assert.Equal(t, traceparent, headers["traceparent"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(pgxmock.NewRows(outboxColumns))
	mock.ExpectCommit()

	n, err := NewPublisher(mock, &fakeWriter{}, testLogger(), PublisherConfig{}).PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchWriteFailureLeavesRowsPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(1), "evt-1", "tenant-1", "appointment", "appt-1", EventAppointmentReserved, []byte(`{}`), "", "", time.Now()))
	mock.ExpectRollback()

	writer := &fakeWriter{err: errors.New("broker down")}
	_, err = NewPublisher(mock, writer, testLogger(), PublisherConfig{}).PublishBatch(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
