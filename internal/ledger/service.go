package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// BillingType tells the caller which pool paid for a send: the monthly free
// quota or locked wallet credits.
type BillingType string

const (
	BillingFree BillingType = "FREE"
	BillingPaid BillingType = "PAID"
)

type Service struct {
	repo      Repository
	freeQuota int
	now       func() time.Time
}

func NewService(repo Repository, freeQuota int) *Service {
	return &Service{
		repo:      repo,
		freeQuota: freeQuota,
		now:       time.Now,
	}
}

// Consume reserves payment for one send attempt. Under the monthly free
// threshold it claims a quota slot and returns FREE; past it, it locks
// credits and returns PAID, or fails with ErrInsufficientCredits.
//
// A FREE slot is never given back on a failed send. Quota is a counter, not a
// balance, and keeping consumption one-way closes the free-retry loophole.
func (s *Service) Consume(ctx context.Context, ownerID uuid.UUID, cost int64) (BillingType, error) {
	logger := middleware.GetLogger(ctx)

	if s.freeQuota > 0 {
		year, month := s.period()
		free, err := s.repo.IncrementFreeUsage(ctx, ownerID, year, month, s.freeQuota)
		if err != nil {
			return "", err
		}
		if free {
			return BillingFree, nil
		}
	}

	if err := s.repo.EnsureWallet(ctx, ownerID); err != nil {
		return "", err
	}

	locked, err := s.repo.LockCredits(ctx, ownerID, cost)
	if err != nil {
		return "", err
	}
	if !locked {
		logger.Warn().Str("owner_id", ownerID.String()).Int64("cost", cost).Msg("credit lock refused, balance too low")
		return "", ErrInsufficientCredits
	}
	return BillingPaid, nil
}

// Commit finalizes a reservation after the provider accepted the send.
// FREE consumption has nothing to finalize. The caller must call this exactly
// once per successful PAID lock.
func (s *Service) Commit(ctx context.Context, ownerID uuid.UUID, cost int64, billing BillingType) error {
	if billing != BillingPaid {
		return nil
	}
	return s.repo.CommitCredits(ctx, ownerID, cost)
}

// Refund reverses a reservation after a lock that did not end in a committed
// send. FREE consumption is not refunded.
func (s *Service) Refund(ctx context.Context, ownerID uuid.UUID, cost int64, billing BillingType) error {
	if billing != BillingPaid {
		return nil
	}
	return s.repo.RefundCredits(ctx, ownerID, cost)
}

func (s *Service) Balance(ctx context.Context, ownerID uuid.UUID) (*model.Wallet, error) {
	return s.repo.Wallet(ctx, ownerID)
}

// PeriodUsage returns the free-tier slots used in the current month.
func (s *Service) PeriodUsage(ctx context.Context, ownerID uuid.UUID) (int, error) {
	year, month := s.period()
	return s.repo.PeriodUsage(ctx, ownerID, year, month)
}

func (s *Service) FreeQuota() int {
	return s.freeQuota
}

func (s *Service) period() (int, int) {
	t := s.now().UTC()
	return t.Year(), int(t.Month())
}
