package funds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flor3z/faction-bot/internal/torn"
	"github.com/google/uuid"
)

// Kind classifies a bookkeeping transaction
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindPayout     Kind = "payout"
)

// ParseKind validates a transaction kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDeposit, KindWithdrawal, KindPayout:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q (deposit, withdrawal, payout)", s)
}

// Sign returns +1 for money coming in and -1 for money going out
func (k Kind) Sign() int64 {
	if k == KindDeposit {
		return 1
	}
	return -1
}

// Snapshot is the faction's funds at one moment
type Snapshot struct {
	ID          string
	Money       int64
	Points      int64
	MemberMoney int64
	Members     int
	TakenBy     string
	TakenAt     time.Time
}

// Transaction is a manually recorded movement of money
type Transaction struct {
	ID        string
	Kind      Kind
	Amount    int64
	MemberID  int64
	WarID     int64
	Note      string
	CreatedBy string
	CreatedAt time.Time
}

// Source fetches the live balance
type Source interface {
	Balance(ctx context.Context) (*torn.Balance, error)
}

// Store persists snapshots and transactions
type Store interface {
	SaveFundsSnapshot(ctx context.Context, s *Snapshot) error
	ListFundsSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	SaveFundsTransaction(ctx context.Context, t *Transaction) error
	ListFundsTransactions(ctx context.Context, limit int) ([]Transaction, error)
}

// Service does funds bookkeeping
type Service struct {
	source Source
	store  Store
	now    func() time.Time
}

// NewService creates a funds service
func NewService(source Source, store Store) *Service {
	return &Service{source: source, store: store, now: time.Now}
}

// TakeSnapshot records the current balance
func (s *Service) TakeSnapshot(ctx context.Context, by string) (*Snapshot, error) {
	bal, err := s.source.Balance(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:      uuid.NewString(),
		Money:   bal.Faction.Money,
		Points:  bal.Faction.Points,
		Members: len(bal.Members),
		TakenBy: by,
		TakenAt: s.now().UTC(),
	}
	for _, m := range bal.Members {
		snap.MemberMoney += m.Money
	}

	if err := s.store.SaveFundsSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	slog.Info("Funds snapshot taken", "money", snap.Money, "memberMoney", snap.MemberMoney)
	return snap, nil
}

// Record stores a bookkeeping transaction
func (s *Service) Record(ctx context.Context, kind Kind, amount, memberID, warID int64, note, by string) (*Transaction, error) {
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	t := &Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		MemberID:  memberID,
		WarID:     warID,
		Note:      note,
		CreatedBy: by,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveFundsTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	return t, nil
}

// History returns the newest transactions first
func (s *Service) History(ctx context.Context, limit int) ([]Transaction, error) {
	return s.store.ListFundsTransactions(ctx, limit)
}

// Snapshots returns the newest snapshots first
func (s *Service) Snapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.store.ListFundsSnapshots(ctx, limit)
}

// Net sums transactions with deposits positive and outflows negative
func Net(ts []Transaction) int64 {
	var net int64
	for _, t := range ts {
		net += t.Kind.Sign() * t.Amount
	}
	return net
}
