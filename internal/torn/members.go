package torn

import (
	"context"
	"fmt"
	"sort"
)

// Status states reported by the API
const (
	StateOkay      = "Okay"
	StateHospital  = "Hospital"
	StateTraveling = "Traveling"
	StateAbroad    = "Abroad"
	StateJail      = "Jail"
	StateFederal   = "Federal"
	StateFallen    = "Fallen"
)

// Member represents one faction member from the members endpoint
type Member struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Status     Status `json:"status"`
	Life       Life   `json:"life"`
	LastAction struct {
		Status    string `json:"status"`
		Timestamp int64  `json:"timestamp"`
	} `json:"last_action"`
}

// Status describes what a member is currently doing
type Status struct {
	Description string `json:"description"`
	Details     string `json:"details"`
	State       string `json:"state"`
	Until       int64  `json:"until"` // Unix seconds, 0 when open-ended
}

// Life holds current and maximum hit points
type Life struct {
	Current int `json:"current"`
	Maximum int `json:"maximum"`
}

// Ratio returns current/maximum life, or -1 when unknown
func (l Life) Ratio() float64 {
	if l.Maximum <= 0 {
		return -1
	}
	return float64(l.Current) / float64(l.Maximum)
}

type membersResponse struct {
	Members []Member `json:"members"`
}

// FactionMembers retrieves the full roster of a faction
func (c *Client) FactionMembers(ctx context.Context, factionID int64) ([]Member, error) {
	endpoint := c.endpoint(fmt.Sprintf("/faction/%d/members", factionID), nil)

	var resp membersResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to get faction members: %w", err)
	}

	sort.Slice(resp.Members, func(i, j int) bool {
		return resp.Members[i].ID < resp.Members[j].ID
	})
	return resp.Members, nil
}
