package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flor3z/faction-bot/internal/payout"
)

// Expected is a payment that should have been made
type Expected struct {
	MemberID int64
	Name     string
	Amount   int64
}

// Verification is the outcome of matching one expected payment
type Verification struct {
	Expected
	Verified   bool
	VerifiedBy string
	VerifiedAt time.Time
	// Matches holds every matching transfer, newest first
	Matches []Transfer
}

// Double reports whether more than one transfer matched
func (v Verification) Double() bool {
	return len(v.Matches) > 1
}

// Report is the result of a verification run
type Report struct {
	Verifications []Verification
	Unparsed      int
}

// Verified returns the verifications that found a transfer
func (r Report) Verified() []Verification {
	return r.filter(func(v Verification) bool { return v.Verified })
}

// Unverified returns the verifications without any transfer
func (r Report) Unverified() []Verification {
	return r.filter(func(v Verification) bool { return !v.Verified })
}

// DoublePayments returns the verifications matched more than once
func (r Report) DoublePayments() []Verification {
	return r.filter(Verification.Double)
}

func (r Report) filter(keep func(Verification) bool) []Verification {
	var out []Verification
	for _, v := range r.Verifications {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Verify matches each expected payment against the transfers. A transfer
// matches when its amount is exactly equal and the names contain one another,
// ignoring case. Expected payments without a positive amount are skipped.
//
// Name containment can pair two recipients whose names overlap if they were
// also owed the identical amount; results are meant for human review.
func Verify(expected []Expected, transfers []Transfer) Report {
	var report Report

	for _, exp := range expected {
		if exp.Amount <= 0 {
			continue
		}

		v := Verification{Expected: exp}
		for _, t := range transfers {
			if t.Amount == exp.Amount && namesMatch(t.Recipient, exp.Name) {
				v.Matches = append(v.Matches, t)
			}
		}

		if len(v.Matches) > 0 {
			sortNewestFirst(v.Matches)
			v.Verified = true
			v.VerifiedBy = v.Matches[0].Admin
			v.VerifiedAt = v.Matches[0].At
		}

		report.Verifications = append(report.Verifications, v)
	}

	return report
}

// VerifyFeed parses raw entries and verifies them in one step
func VerifyFeed(expected []Expected, entries []Entry) Report {
	transfers, unparsed := ParseFeed(entries)
	report := Verify(expected, transfers)
	report.Unparsed = unparsed
	return report
}

func namesMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sortNewestFirst(ts []Transfer) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].At.After(ts[j].At)
	})
}

// DuplicateGroup is a set of transfers with the same recipient and amount
type DuplicateGroup struct {
	RecipientID int64
	Recipient   string
	Amount      int64
	Transfers   []Transfer // newest first
}

// Count returns the number of transfers in the group
func (g DuplicateGroup) Count() int {
	return len(g.Transfers)
}

// FindDuplicates groups the whole feed by (recipient, amount) without any
// ledger and returns groups seen more than once. Recipients are keyed by
// their bracketed id, falling back to the lowercased name. A group is a
// suspicion to review: two separate wars can legitimately pay the same
// member the same amount.
func FindDuplicates(transfers []Transfer) []DuplicateGroup {
	groups := make(map[string]*DuplicateGroup)
	var order []string

	for _, t := range transfers {
		key := fmt.Sprintf("name:%s|%d", strings.ToLower(t.RecipientName), t.Amount)
		if t.RecipientID > 0 {
			key = fmt.Sprintf("id:%d|%d", t.RecipientID, t.Amount)
		}

		g, ok := groups[key]
		if !ok {
			g = &DuplicateGroup{RecipientID: t.RecipientID, Recipient: t.RecipientName, Amount: t.Amount}
			groups[key] = g
			order = append(order, key)
		}
		g.Transfers = append(g.Transfers, t)
	}

	var out []DuplicateGroup
	for _, key := range order {
		g := groups[key]
		if len(g.Transfers) < 2 {
			continue
		}
		sortNewestFirst(g.Transfers)
		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count() != out[j].Count() {
			return out[i].Count() > out[j].Count()
		}
		return out[i].Amount > out[j].Amount
	})
	return out
}

// ExpectedFromLedger lists the ledger's line items as expected payments
func ExpectedFromLedger(l *payout.Ledger) []Expected {
	expected := make([]Expected, 0, len(l.Items))
	for _, item := range l.Items {
		expected = append(expected, Expected{MemberID: item.MemberID, Name: item.Name, Amount: item.Payment})
	}
	return expected
}

// ApplyToLedger marks every verified, still unpaid item as paid by the
// admin who made the newest matching transfer. It never unmarks an item.
// It returns the number of items marked.
func ApplyToLedger(l *payout.Ledger, r Report) int {
	marked := 0
	for _, v := range r.Verified() {
		item, ok := l.Item(v.MemberID)
		if !ok || item.Paid {
			continue
		}
		if err := l.MarkPaid(v.MemberID, "auto:"+v.VerifiedBy, v.VerifiedAt); err == nil {
			marked++
		}
	}
	return marked
}
