package storage

import (
	"context"
	"fmt"
)

// LockSchedule takes pg_advisory_xact_lock on each key in order. The locks are released by
// commit or rollback; a lock wait is bounded by the session lock_timeout.
func (r *Repository) LockSchedule(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}

// LockIdempotencyKey claims (tenant, key) and row-locks it until the transaction ends, so a
// concurrent retry with the same key waits and then replays.
func (r *Repository) LockIdempotencyKey(ctx context.Context, tenantID, key string) (string, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, tenantID, key); err != nil {
		return "", err
	}

	var appointmentID string
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, tenantID, key).Scan(&appointmentID)
	return appointmentID, err
}

func (r *Repository) FinalizeIdempotency(ctx context.Context, tenantID, key, appointmentID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key, appointmentID)
	return err
}
