package report

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/torn"
)

var (
	// ErrNotFound is returned when no report is stored for a war
	ErrNotFound = errors.New("report: not found")
	// ErrReportExists is returned when regenerating without force
	ErrReportExists = errors.New("report: already generated")
)

// Summary holds war-wide totals
type Summary struct {
	WarID        int64
	FactionID    int64
	OpponentID   int64
	OpponentName string
	Start        time.Time
	End          time.Time
	TotalHits    int
	TotalAssists int
	TotalRespect float64
	GeneratedBy  string
	GeneratedAt  time.Time
}

// Contribution is one member's numbers for a war
type Contribution struct {
	WarID              int64
	MemberID           int64
	Name               string
	WarHits            int
	UnderThresholdHits int
	OffTargetHits      int
	Assists            int
	Losses             int
	Respect            float64
}

// Counters converts the contribution for the payout formula
func (c Contribution) Counters() payout.Counters {
	return payout.Counters{
		WarHits:            c.WarHits,
		UnderThresholdHits: c.UnderThresholdHits,
		OffTargetHits:      c.OffTargetHits,
		Assists:            c.Assists,
	}
}

// Report is a summary plus per-member contributions
type Report struct {
	Summary
	Contributions []Contribution
}

// Contributors lists the report's members for payout computation
func (r *Report) Contributors() []payout.Contributor {
	out := make([]payout.Contributor, 0, len(r.Contributions))
	for _, c := range r.Contributions {
		out = append(out, payout.Contributor{MemberID: c.MemberID, Name: c.Name, Counters: c.Counters()})
	}
	return out
}

// Build aggregates our faction's attacks during a ranked war. A successful
// ranked-war hit on the opponent counts as a war hit when its respect reaches
// threshold and as an under-threshold hit otherwise; successful hits on
// anyone else are off-target.
func Build(war *torn.RankedWar, attacks []torn.Attack, factionID int64, threshold float64, now time.Time) (*Report, error) {
	opponent, ok := war.Opponent(factionID)
	if !ok {
		return nil, fmt.Errorf("war %d has no opponent for faction %d", war.ID, factionID)
	}

	start := war.StartTime()
	end := war.EndTime()
	if end.IsZero() {
		end = now
	}

	r := &Report{
		Summary: Summary{
			WarID:        war.ID,
			FactionID:    factionID,
			OpponentID:   opponent.ID,
			OpponentName: opponent.Name,
			Start:        start,
			End:          end,
			GeneratedAt:  now,
		},
	}

	byMember := make(map[int64]*Contribution)
	get := func(p *torn.AttackParty) *Contribution {
		c, ok := byMember[p.ID]
		if !ok {
			c = &Contribution{WarID: war.ID, MemberID: p.ID, Name: p.Name}
			byMember[p.ID] = c
		}
		if c.Name == "" {
			c.Name = p.Name
		}
		return c
	}

	for i := range attacks {
		a := &attacks[i]
		if a.Attacker == nil || a.Attacker.FactionID() != factionID {
			continue
		}
		at := time.Unix(a.Started, 0).UTC()
		if at.Before(start) || at.After(end) {
			continue
		}

		c := get(a.Attacker)
		onOpponent := a.Defender.FactionID() == opponent.ID

		switch {
		case a.IsAssist():
			if onOpponent {
				c.Assists++
				r.TotalAssists++
			}
		case a.Successful():
			if onOpponent && a.IsRankedWar {
				if a.RespectGain >= threshold {
					c.WarHits++
				} else {
					c.UnderThresholdHits++
				}
				c.Respect += a.RespectGain
				r.TotalHits++
				r.TotalRespect += a.RespectGain
			} else if !onOpponent {
				c.OffTargetHits++
			}
		default:
			c.Losses++
		}
	}

	for _, c := range byMember {
		r.Contributions = append(r.Contributions, *c)
	}
	sort.Slice(r.Contributions, func(i, j int) bool {
		a, b := r.Contributions[i], r.Contributions[j]
		if a.Respect != b.Respect {
			return a.Respect > b.Respect
		}
		return a.MemberID < b.MemberID
	})

	return r, nil
}
