package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store persists ledgers
type Store interface {
	GetLedger(ctx context.Context, warID int64) (*Ledger, error)
	SaveLedger(ctx context.Context, l *Ledger) error
	UpdateLineItemPaid(ctx context.Context, warID int64, item *LineItem) error
}

// Service computes ledgers and tracks their paid state
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a payout service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Compute builds a ledger from the contributors and replaces any stored one.
// Paid items of the stored ledger stay paid; a recompute that would drop a
// paid member fails with ErrPaidMemberDropped.
func (s *Service) Compute(ctx context.Context, warID int64, contributors []Contributor, pool int64, fraction float64, w Weights, by string) (*Ledger, error) {
	l, err := Compute(warID, contributors, pool, fraction, w)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.GetLedger(ctx, warID)
	switch {
	case err == nil:
		if err := carryPaid(prev, l); err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrLedgerNotFound):
		return nil, fmt.Errorf("load existing ledger: %w", err)
	}

	l.CreatedBy = by
	l.CreatedAt = s.now().UTC()

	if err := s.store.SaveLedger(ctx, l); err != nil {
		return nil, fmt.Errorf("save ledger: %w", err)
	}

	slog.Info("Computed payout",
		"war", warID,
		"pool", pool,
		"payout", l.Payout,
		"members", len(l.Items),
		"distributed", l.Distributed(),
	)
	return l, nil
}

func carryPaid(prev, next *Ledger) error {
	for _, old := range prev.Items {
		if !old.Paid {
			continue
		}
		item, ok := next.Item(old.MemberID)
		if !ok {
			return fmt.Errorf("%w: %s [%d], reset it first", ErrPaidMemberDropped, old.Name, old.MemberID)
		}
		if item.Payment != old.Payment {
			slog.Warn("Paid member's payment changed on recompute",
				"war", next.WarID,
				"member", old.MemberID,
				"paid", old.Payment,
				"now", item.Payment,
			)
		}
		item.Paid = true
		item.PaidBy = old.PaidBy
		item.PaidAt = old.PaidAt
	}
	return nil
}

// Get loads a stored ledger
func (s *Service) Get(ctx context.Context, warID int64) (*Ledger, error) {
	return s.store.GetLedger(ctx, warID)
}

// MarkPaid marks one member paid and persists the change
func (s *Service) MarkPaid(ctx context.Context, warID, memberID int64, by string) (*LineItem, error) {
	l, err := s.store.GetLedger(ctx, warID)
	if err != nil {
		return nil, err
	}
	if err := l.MarkPaid(memberID, by, s.now().UTC()); err != nil {
		return nil, err
	}
	item, _ := l.Item(memberID)
	if err := s.store.UpdateLineItemPaid(ctx, warID, item); err != nil {
		return nil, fmt.Errorf("persist paid status: %w", err)
	}
	return item, nil
}

// ResetPaid clears one member's paid flag and persists the change
func (s *Service) ResetPaid(ctx context.Context, warID, memberID int64) (*LineItem, error) {
	l, err := s.store.GetLedger(ctx, warID)
	if err != nil {
		return nil, err
	}
	if err := l.ResetPaid(memberID); err != nil {
		return nil, err
	}
	item, _ := l.Item(memberID)
	if err := s.store.UpdateLineItemPaid(ctx, warID, item); err != nil {
		return nil, fmt.Errorf("persist paid status: %w", err)
	}
	return item, nil
}

// ApplyPaid persists the paid state of the given members after the ledger
// was changed in memory
func (s *Service) ApplyPaid(ctx context.Context, l *Ledger, memberIDs []int64) error {
	for _, id := range memberIDs {
		item, ok := l.Item(id)
		if !ok {
			continue
		}
		if err := s.store.UpdateLineItemPaid(ctx, l.WarID, item); err != nil {
			return fmt.Errorf("persist paid status for %d: %w", id, err)
		}
	}
	return nil
}

// ImportPaid marks every row whose paid column is set. Rows already paid or
// absent from the ledger are counted as skipped.
func (s *Service) ImportPaid(ctx context.Context, warID int64, rows []CSVRow, by string) (marked, skipped int, err error) {
	l, err := s.store.GetLedger(ctx, warID)
	if err != nil {
		return 0, 0, err
	}

	now := s.now().UTC()
	var changed []int64
	for _, row := range rows {
		if !row.Paid {
			continue
		}
		if err := l.MarkPaid(row.MemberID, by, now); err != nil {
			skipped++
			continue
		}
		changed = append(changed, row.MemberID)
	}

	if err := s.ApplyPaid(ctx, l, changed); err != nil {
		return 0, skipped, err
	}
	return len(changed), skipped, nil
}
