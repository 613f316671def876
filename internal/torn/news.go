package torn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// News categories used by the bot
const (
	NewsDepositFunds = "depositFunds"
	NewsGiveFunds    = "giveFunds"
)

// NewsEntry is one line of the faction news feed
type NewsEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Time returns the entry timestamp
func (n NewsEntry) Time() time.Time {
	return time.Unix(n.Timestamp, 0).UTC()
}

type newsPage struct {
	News     []NewsEntry `json:"news"`
	Metadata metadata    `json:"_metadata"`
}

// News retrieves faction news of one category between from and to
func (c *Client) News(ctx context.Context, category string, from, to time.Time) ([]NewsEntry, error) {
	query := url.Values{}
	query.Set("cat", category)
	query.Set("limit", "100")
	query.Set("sort", "DESC")
	if !from.IsZero() {
		query.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		query.Set("to", strconv.FormatInt(to.Unix(), 10))
	}

	var all []NewsEntry
	seen := make(map[string]bool)

	err := c.paginate(ctx, c.endpoint("/faction/news", query), func(raw json.RawMessage) (int, metadata, error) {
		var page newsPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return 0, metadata{}, fmt.Errorf("failed to decode news page: %w", err)
		}
		for _, n := range page.News {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			all = append(all, n)
		}
		return len(page.News), page.Metadata, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}

	return all, nil
}
