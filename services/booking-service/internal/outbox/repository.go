package outbox

import (
	"context"
	"time"

	otelx "github.com/Omarch29/sloty-saas-appointment-system/libs/otel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier interface {
	execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Insert stores evt with the caller's trace context so the publisher can continue the trace.
func Insert(ctx context.Context, db execer, evt Event) error {
	tc := otelx.Capture(ctx)
	_, err := db.Exec(ctx, `
		INSERT INTO outbox_events (event_id, tenant_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.EventID, evt.TenantID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Traceparent, tc.Tracestate)
	return err
}

type Record struct {
	ID        int64
	Event     Event
	Trace     otelx.TraceContext
	CreatedAt time.Time
}

// FetchUnpublished locks up to limit pending rows; concurrent publishers skip each other's rows.
func FetchUnpublished(ctx context.Context, db querier, limit int) ([]Record, error) {
	rows, err := db.Query(ctx, `
		SELECT id, event_id::text, tenant_id::text, aggregate_type, aggregate_id, event_type, payload,
			traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Event.EventID, &r.Event.TenantID, &r.Event.AggregateType, &r.Event.AggregateID,
			&r.Event.EventType, &r.Event.Payload, &r.Trace.Traceparent, &r.Trace.Tracestate, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func MarkPublished(ctx context.Context, db execer, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}
