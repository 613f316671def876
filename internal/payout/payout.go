package payout

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrLedgerNotFound is returned when no ledger is stored for a war
	ErrLedgerNotFound = errors.New("payout: ledger not found")
	// ErrUnknownMember is returned when a member has no line item
	ErrUnknownMember = errors.New("payout: member not in ledger")
	// ErrAlreadyPaid is returned when marking an item that is already paid
	ErrAlreadyPaid = errors.New("payout: already paid")
	// ErrPaidMemberDropped is returned when a recompute would remove a paid member
	ErrPaidMemberDropped = errors.New("payout: recompute drops a paid member")
)

// Counters are the raw per-member numbers the points formula consumes
type Counters struct {
	WarHits            int
	UnderThresholdHits int
	OffTargetHits      int
	Assists            int
}

// Weights are the points awarded per counter
type Weights struct {
	WarHit         float64
	UnderThreshold float64
	OffTarget      float64
	Assist         float64
}

// DefaultWeights returns the weights used when none are configured
func DefaultWeights() Weights {
	return Weights{
		WarHit:         1,
		UnderThreshold: 0.5,
		OffTarget:      0,
		Assist:         0.25,
	}
}

// Points is the linear combination of counters and weights
func (w Weights) Points(c Counters) decimal.Decimal {
	return decimal.NewFromFloat(w.WarHit).Mul(decimal.NewFromInt(int64(c.WarHits))).
		Add(decimal.NewFromFloat(w.UnderThreshold).Mul(decimal.NewFromInt(int64(c.UnderThresholdHits)))).
		Add(decimal.NewFromFloat(w.OffTarget).Mul(decimal.NewFromInt(int64(c.OffTargetHits)))).
		Add(decimal.NewFromFloat(w.Assist).Mul(decimal.NewFromInt(int64(c.Assists))))
}

// Contributor is a member eligible for a share of the pool
type Contributor struct {
	MemberID int64
	Name     string
	Counters Counters
}

// LineItem is one member's computed payment
type LineItem struct {
	MemberID int64
	Name     string
	Counters Counters
	Points   float64
	Payment  int64
	Paid     bool
	PaidBy   string
	PaidAt   time.Time
}

// Ledger is the distribution of a war's cash pool
type Ledger struct {
	WarID       int64
	Pool        int64
	Fraction    float64
	Payout      int64
	TotalPoints float64
	Rate        float64 // money per point
	Weights     Weights
	CreatedBy   string
	CreatedAt   time.Time
	Items       []LineItem
}

// Compute distributes pool*fraction across contributors in proportion to
// their points. Members whose points or rounded payment are not positive are
// left out. The result does not depend on the order of contributors.
func Compute(warID int64, contributors []Contributor, pool int64, fraction float64, w Weights) (*Ledger, error) {
	if pool < 0 {
		return nil, fmt.Errorf("pool must not be negative: %d", pool)
	}
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("payout fraction must be in (0, 1]: %v", fraction)
	}

	payout := decimal.NewFromInt(pool).Mul(decimal.NewFromFloat(fraction)).Round(0)

	points := make([]decimal.Decimal, len(contributors))
	total := decimal.Zero
	for i, c := range contributors {
		points[i] = w.Points(c.Counters)
		if points[i].IsPositive() {
			total = total.Add(points[i])
		}
	}

	ledger := &Ledger{
		WarID:       warID,
		Pool:        pool,
		Fraction:    fraction,
		Payout:      payout.IntPart(),
		TotalPoints: total.InexactFloat64(),
		Weights:     w,
	}

	if !total.IsPositive() {
		return ledger, nil
	}

	rate := payout.Div(total)
	ledger.Rate = rate.InexactFloat64()

	for i, c := range contributors {
		if !points[i].IsPositive() {
			continue
		}
		payment := points[i].Mul(rate).Round(0).IntPart()
		if payment <= 0 {
			continue
		}
		ledger.Items = append(ledger.Items, LineItem{
			MemberID: c.MemberID,
			Name:     c.Name,
			Counters: c.Counters,
			Points:   points[i].InexactFloat64(),
			Payment:  payment,
		})
	}

	sort.Slice(ledger.Items, func(i, j int) bool {
		a, b := ledger.Items[i], ledger.Items[j]
		if a.Payment != b.Payment {
			return a.Payment > b.Payment
		}
		return a.MemberID < b.MemberID
	})

	return ledger, nil
}

// Item returns the line item for a member
func (l *Ledger) Item(memberID int64) (*LineItem, bool) {
	for i := range l.Items {
		if l.Items[i].MemberID == memberID {
			return &l.Items[i], true
		}
	}
	return nil, false
}

// MarkPaid flags a member's item as paid. Paid items stay paid until an
// operator resets them.
func (l *Ledger) MarkPaid(memberID int64, by string, at time.Time) error {
	item, ok := l.Item(memberID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMember, memberID)
	}
	if item.Paid {
		return fmt.Errorf("%w: %d", ErrAlreadyPaid, memberID)
	}
	item.Paid = true
	item.PaidBy = by
	item.PaidAt = at
	return nil
}

// ResetPaid clears the paid flag of a member's item
func (l *Ledger) ResetPaid(memberID int64) error {
	item, ok := l.Item(memberID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMember, memberID)
	}
	item.Paid = false
	item.PaidBy = ""
	item.PaidAt = time.Time{}
	return nil
}

// Totals returns the paid and unpaid sums
func (l *Ledger) Totals() (paid, unpaid int64) {
	for _, item := range l.Items {
		if item.Paid {
			paid += item.Payment
		} else {
			unpaid += item.Payment
		}
	}
	return paid, unpaid
}

// Distributed returns the sum of all payments
func (l *Ledger) Distributed() int64 {
	paid, unpaid := l.Totals()
	return paid + unpaid
}
