package torn

import (
	"context"
	"fmt"
)

// MemberBalance is one member's money and points held by the faction
type MemberBalance struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Money    int64  `json:"money"`
	Points   int64  `json:"points"`
}

// Balance is the faction vault plus per-member balances
type Balance struct {
	Faction struct {
		Money  int64 `json:"money"`
		Points int64 `json:"points"`
		Scope  int64 `json:"scope"`
	} `json:"faction"`
	Members []MemberBalance `json:"members"`
}

type balanceResponse struct {
	Balance Balance `json:"balance"`
}

// Balance retrieves the faction's funds
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var resp balanceResponse
	if err := c.get(ctx, c.endpoint("/faction/balance", nil), &resp); err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &resp.Balance, nil
}
