package torn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Attack results that count as a successful hit
var successfulResults = map[string]bool{
	"Attacked":     true,
	"Mugged":       true,
	"Hospitalized": true,
	"Arrested":     true,
	"Bounty":       true,
}

// AttackParty is the attacker or defender side of an attack
type AttackParty struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Level   int    `json:"level"`
	Faction *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"faction"`
}

// FactionID returns the party's faction id, or 0 if factionless
func (p *AttackParty) FactionID() int64 {
	if p == nil || p.Faction == nil {
		return 0
	}
	return p.Faction.ID
}

// Attack is one entry of the faction attack log
type Attack struct {
	ID            int64        `json:"id"`
	Code          string       `json:"code"`
	Started       int64        `json:"started"`
	Ended         int64        `json:"ended"`
	Attacker      *AttackParty `json:"attacker"`
	Defender      *AttackParty `json:"defender"`
	Result        string       `json:"result"`
	RespectGain   float64      `json:"respect_gain"`
	RespectLoss   float64      `json:"respect_loss"`
	Chain         int          `json:"chain"`
	IsInterrupted bool         `json:"is_interrupted"`
	IsStealthed   bool         `json:"is_stealthed"`
	IsRaid        bool         `json:"is_raid"`
	IsRankedWar   bool         `json:"is_ranked_war"`
}

// Successful reports whether the attacker won
func (a *Attack) Successful() bool {
	return successfulResults[a.Result]
}

// IsAssist reports whether the attack was an assist
func (a *Attack) IsAssist() bool {
	return a.Result == "Assist"
}

type attacksPage struct {
	Attacks  []Attack `json:"attacks"`
	Metadata metadata `json:"_metadata"`
}

// Attacks retrieves every faction attack between from and to, following cursor links
func (c *Client) Attacks(ctx context.Context, from, to time.Time) ([]Attack, error) {
	query := url.Values{}
	query.Set("limit", "100")
	query.Set("sort", "ASC")
	if !from.IsZero() {
		query.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		query.Set("to", strconv.FormatInt(to.Unix(), 10))
	}

	var all []Attack
	seen := make(map[int64]bool)

	err := c.paginate(ctx, c.endpoint("/faction/attacks", query), func(raw json.RawMessage) (int, metadata, error) {
		var page attacksPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return 0, metadata{}, fmt.Errorf("failed to decode attacks page: %w", err)
		}
		for _, a := range page.Attacks {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			all = append(all, a)
		}
		return len(page.Attacks), page.Metadata, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attacks: %w", err)
	}

	return all, nil
}
