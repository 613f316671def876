package reconcile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flor3z/faction-bot/internal/payout"
)

// ReadFeed reads an exported feed of "<unix-seconds>\t<text>" lines. Blank
// lines are ignored; lines without a valid timestamp are counted as skipped.
func ReadFeed(r io.Reader) ([]Entry, int, error) {
	var entries []Entry
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		ts, text, ok := strings.Cut(line, "\t")
		if !ok {
			skipped++
			continue
		}
		sec, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, Entry{Text: text, At: time.Unix(sec, 0).UTC()})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read feed: %w", err)
	}
	return entries, skipped, nil
}

// ExpectedFromCSV lists imported ledger rows as expected payments
func ExpectedFromCSV(rows []payout.CSVRow) []Expected {
	expected := make([]Expected, 0, len(rows))
	for _, row := range rows {
		expected = append(expected, Expected{MemberID: row.MemberID, Name: row.Name, Amount: row.Payment})
	}
	return expected
}
