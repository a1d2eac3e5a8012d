package ledger

import (
	"context"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	EnsureWallet(ctx context.Context, ownerID uuid.UUID) error
	LockCredits(ctx context.Context, ownerID uuid.UUID, cost int64) (bool, error)
	CommitCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error
	RefundCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error
	IncrementFreeUsage(ctx context.Context, ownerID uuid.UUID, year, month, threshold int) (bool, error)
	Wallet(ctx context.Context, ownerID uuid.UUID) (*model.Wallet, error)
	PeriodUsage(ctx context.Context, ownerID uuid.UUID, year, month int) (int, error)
}

type LedgerRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// EnsureWallet lazily creates the owner's wallet on first need.
func (lr *LedgerRepo) EnsureWallet(ctx context.Context, ownerID uuid.UUID) error {
	_, err := lr.db.Exec(ctx, `INSERT INTO wallets (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`, ownerID)
	return err
}

// LockCredits moves cost from balance to locked_balance in one conditional
// write. Returns false when the balance is below cost - the row simply does
// not match, which is the entire overdraft guard. No read-then-write.
func (lr *LedgerRepo) LockCredits(ctx context.Context, ownerID uuid.UUID, cost int64) (bool, error) {
	res, err := lr.db.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1,
			locked_balance = locked_balance + $1,
			updated_at = NOW()
		WHERE owner_id = $2 AND balance >= $1`,
		cost, ownerID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

// CommitCredits releases a reservation after the provider accepted the send.
func (lr *LedgerRepo) CommitCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error {
	_, err := lr.db.Exec(ctx, `
		UPDATE wallets
		SET locked_balance = locked_balance - $1,
			updated_at = NOW()
		WHERE owner_id = $2 AND locked_balance >= $1`,
		cost, ownerID)
	return err
}

// RefundCredits reverses a reservation after a failed send.
func (lr *LedgerRepo) RefundCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error {
	_, err := lr.db.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
			locked_balance = locked_balance - $1,
			updated_at = NOW()
		WHERE owner_id = $2 AND locked_balance >= $1`,
		cost, ownerID)
	return err
}

// IncrementFreeUsage bumps the current period's counter only while it is
// under the threshold. A single upsert so two concurrent sends cannot both
// claim the last free slot. Returns true when a free slot was claimed.
func (lr *LedgerRepo) IncrementFreeUsage(ctx context.Context, ownerID uuid.UUID, year, month, threshold int) (bool, error) {
	res, err := lr.db.Exec(ctx, `
		INSERT INTO monthly_usage (owner_id, year, month, used)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id, year, month)
		DO UPDATE SET used = monthly_usage.used + 1
		WHERE monthly_usage.used < $4`,
		ownerID, year, month, threshold)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (lr *LedgerRepo) Wallet(ctx context.Context, ownerID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	err := lr.db.QueryRow(ctx, `
		SELECT id, owner_id, balance, locked_balance, created_at, updated_at
		FROM wallets WHERE owner_id = $1`, ownerID).
		Scan(&w.ID, &w.OwnerID, &w.Balance, &w.LockedBalance, &w.CreatedAt, &w.UpdatedAt)
	if err == pgx.ErrNoRows {
		// Lazy creation means "no wallet yet" is just a zero balance
		return &model.Wallet{OwnerID: ownerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (lr *LedgerRepo) PeriodUsage(ctx context.Context, ownerID uuid.UUID, year, month int) (int, error) {
	var used int
	err := lr.db.QueryRow(ctx, `
		SELECT used FROM monthly_usage WHERE owner_id = $1 AND year = $2 AND month = $3`,
		ownerID, year, month).Scan(&used)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}
