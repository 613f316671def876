package torn

import (
	"context"
	"fmt"
	"time"
)

// WarFaction is one side of a ranked war
type WarFaction struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Chain int    `json:"chain"`
}

// RankedWar describes a ranked war between two factions
type RankedWar struct {
	ID       int64        `json:"id"`
	Start    int64        `json:"start"`
	End      int64        `json:"end"`
	Target   int          `json:"target"`
	Winner   int64        `json:"winner"`
	Factions []WarFaction `json:"factions"`
}

// StartTime returns the war start as a time.Time
func (w *RankedWar) StartTime() time.Time {
	return time.Unix(w.Start, 0).UTC()
}

// EndTime returns the war end, or the zero time while the war is running
func (w *RankedWar) EndTime() time.Time {
	if w.End == 0 {
		return time.Time{}
	}
	return time.Unix(w.End, 0).UTC()
}

// Opponent returns the faction that is not ours
func (w *RankedWar) Opponent(ours int64) (WarFaction, bool) {
	for _, f := range w.Factions {
		if f.ID != ours {
			return f, true
		}
	}
	return WarFaction{}, false
}

type rankedWarsResponse struct {
	RankedWars []RankedWar `json:"rankedwars"`
	Metadata   metadata    `json:"_metadata"`
}

// RankedWars retrieves the ranked war history of a faction, newest first
func (c *Client) RankedWars(ctx context.Context, factionID int64) ([]RankedWar, error) {
	endpoint := c.endpoint(fmt.Sprintf("/faction/%d/rankedwars", factionID), nil)

	var resp rankedWarsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to get ranked wars: %w", err)
	}
	return resp.RankedWars, nil
}

// RankedWar finds a single war in the faction's history
func (c *Client) RankedWar(ctx context.Context, factionID, warID int64) (*RankedWar, error) {
	wars, err := c.RankedWars(ctx, factionID)
	if err != nil {
		return nil, err
	}
	for i := range wars {
		if wars[i].ID == warID {
			return &wars[i], nil
		}
	}
	return nil, fmt.Errorf("ranked war %d: %w", warID, ErrNotFound)
}
