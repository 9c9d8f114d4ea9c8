package storage

import (
	"context"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *db.Pool and pgxmock pools.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store hands out pool-backed reads and transactional repositories.
type Store struct {
	pool TxBeginner
	*Repository
}

func NewStore(pool TxBeginner) *Store {
	return &Store{pool: pool, Repository: NewRepository(pool)}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewRepository(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ reservation.Store = (*Store)(nil)
