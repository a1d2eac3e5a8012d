package billing

import (
	"context"
	"errors"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreatePending(ctx context.Context, t *model.TopupTransaction) error
	CapturePending(ctx context.Context, orderID, paymentID string) (*model.TopupTransaction, error)
	FailPending(ctx context.Context, orderID, reason string) error
}

type TopupRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *TopupRepo {
	return &TopupRepo{db: db}
}

func (tr *TopupRepo) CreatePending(ctx context.Context, t *model.TopupTransaction) error {
	return tr.db.QueryRow(ctx, `
		INSERT INTO topup_transactions (owner_id, order_id, amount, credits, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id`,
		t.OwnerID, t.OrderID, t.Amount, t.Credits).Scan(&t.ID)
}

// CapturePending finalizes the pending transaction and credits the wallet in
// one database transaction. The status guard in the UPDATE is what makes
// replays a no-op: a second capture for the same order matches zero rows and
// returns (nil, nil) without touching the wallet.
func (tr *TopupRepo) CapturePending(ctx context.Context, orderID, paymentID string) (*model.TopupTransaction, error) {
	tx, err := tr.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var t model.TopupTransaction
	err = tx.QueryRow(ctx, `
		UPDATE topup_transactions
		SET status = 'captured', payment_id = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'
		RETURNING id, owner_id, order_id, payment_id, amount, credits, status`,
		orderID, paymentID).
		Scan(&t.ID, &t.OwnerID, &t.OrderID, &t.PaymentID, &t.Amount, &t.Credits, &t.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (owner_id, balance) VALUES ($1, $2)
		ON CONFLICT (owner_id)
		DO UPDATE SET balance = wallets.balance + $2, updated_at = NOW()`,
		t.OwnerID, t.Credits)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

// FailPending marks the transaction failed. Same status guard as capture, so
// a failure receipt arriving after a capture changes nothing.
func (tr *TopupRepo) FailPending(ctx context.Context, orderID, reason string) error {
	_, err := tr.db.Exec(ctx, `
		UPDATE topup_transactions
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'`,
		orderID, reason)
	return err
}
