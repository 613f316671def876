package reconcile

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	transferPattern  = regexp.MustCompile(`^\s*(.+?)\s+increased\s+(.+?)'s\s+money\s+balance\s+by\s+\$([\d,]+)`)
	bracketIDPattern = regexp.MustCompile(`\[(\d+)\]\s*$`)
	profileIDPattern = regexp.MustCompile(`XID=(\d+)`)
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
)

// Transfer is a completed payment parsed from a news line
type Transfer struct {
	Admin         string
	AdminID       int64
	Recipient     string // as written, e.g. "John [123]"
	RecipientName string // without the bracketed id
	RecipientID   int64  // 0 when the text carries no id
	Amount        int64
	At            time.Time
}

// Entry is one raw line of the transaction feed
type Entry struct {
	Text string
	At   time.Time
}

// ParseTransfer extracts admin, recipient and amount from a line such as
// "Admin increased John [123]'s money balance by $1,000 from $0 to $1,000".
// Lines in any other shape report false.
func ParseTransfer(text string, at time.Time) (Transfer, bool) {
	// Profile links carry ids even when the visible names do not
	ids := profileIDPattern.FindAllStringSubmatch(text, -1)

	plain := html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
	m := transferPattern.FindStringSubmatch(plain)
	if m == nil {
		return Transfer{}, false
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(m[3], ",", ""), 10, 64)
	if err != nil {
		return Transfer{}, false
	}

	t := Transfer{
		Admin:         strings.TrimSpace(m[1]),
		Recipient:     strings.TrimSpace(m[2]),
		RecipientName: strings.TrimSpace(m[2]),
		Amount:        amount,
		At:            at,
	}

	if b := bracketIDPattern.FindStringSubmatchIndex(t.Recipient); b != nil {
		t.RecipientID, _ = strconv.ParseInt(t.Recipient[b[2]:b[3]], 10, 64)
		t.RecipientName = strings.TrimSpace(t.Recipient[:b[0]])
	}

	if len(ids) >= 2 {
		t.AdminID, _ = strconv.ParseInt(ids[0][1], 10, 64)
		if t.RecipientID == 0 {
			t.RecipientID, _ = strconv.ParseInt(ids[1][1], 10, 64)
		}
	}

	return t, true
}

// ParseFeed parses every entry and counts the ones that did not match
func ParseFeed(entries []Entry) ([]Transfer, int) {
	transfers := make([]Transfer, 0, len(entries))
	unparsed := 0
	for _, e := range entries {
		t, ok := ParseTransfer(e.Text, e.At)
		if !ok {
			unparsed++
			continue
		}
		transfers = append(transfers, t)
	}
	return transfers, unparsed
}
