package reconcile

import (
	"strings"
	"testing"

	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFeed(t *testing.T) {
	input := "1700000000\tAdmin increased John [123]'s money balance by $1,000 from $0 to $1,000\r\n" +
		"\n" +
		"not-a-time\tsomething\n" +
		"no tab here\n" +
		"1700000060\tSomeone deposited $10\n"

	entries, skipped, err := ReadFeed(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].At.Equal(t0))
	assert.True(t, strings.HasSuffix(entries[0].Text, "to $1,000"))

	report := VerifyFeed([]Expected{{MemberID: 123, Name: "John", Amount: 1000}}, entries)
	assert.Len(t, report.Verified(), 1)
	assert.Equal(t, 1, report.Unparsed)
}

func TestExpectedFromCSV(t *testing.T) {
	rows := []payout.CSVRow{{Line: 2, MemberID: 5, Name: "ann", Payment: 300, Paid: true}}
	assert.Equal(t, []Expected{{MemberID: 5, Name: "ann", Amount: 300}}, ExpectedFromCSV(rows))
}
