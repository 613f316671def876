package payout

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column layout of exported ledgers
var CSVHeader = []string{
	"member_id",
	"name",
	"war_hits",
	"under_threshold_hits",
	"off_target_hits",
	"assists",
	"points",
	"payment",
	"paid",
	"paid_by",
}

// CSVRow is the subset of a ledger row that imports care about
type CSVRow struct {
	Line     int
	MemberID int64
	Name     string
	Payment  int64
	Paid     bool
}

// WriteCSV writes a ledger in the export layout
func WriteCSV(w io.Writer, l *Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, item := range l.Items {
		record := []string{
			strconv.FormatInt(item.MemberID, 10),
			item.Name,
			strconv.Itoa(item.Counters.WarHits),
			strconv.Itoa(item.Counters.UnderThresholdHits),
			strconv.Itoa(item.Counters.OffTargetHits),
			strconv.Itoa(item.Counters.Assists),
			strconv.FormatFloat(item.Points, 'f', -1, 64),
			strconv.FormatInt(item.Payment, 10),
			strconv.FormatBool(item.Paid),
			item.PaidBy,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an uploaded ledger. Rows that cannot be parsed are skipped
// and counted instead of failing the whole file.
func ReadCSV(r io.Reader) ([]CSVRow, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	idCol, ok := cols["member_id"]
	if !ok {
		return nil, 0, errors.New("missing member_id column")
	}
	payCol, ok := cols["payment"]
	if !ok {
		return nil, 0, errors.New("missing payment column")
	}
	nameCol, hasName := cols["name"]
	paidCol, hasPaid := cols["paid"]

	var rows []CSVRow
	skipped := 0
	line := 1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			continue
		}

		field := func(i int) string {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		id, err := strconv.ParseInt(field(idCol), 10, 64)
		if err != nil || id <= 0 {
			skipped++
			continue
		}
		payment, err := parseAmount(field(payCol))
		if err != nil {
			skipped++
			continue
		}

		row := CSVRow{Line: line, MemberID: id, Payment: payment}
		if hasName {
			row.Name = field(nameCol)
		}
		if hasPaid {
			row.Paid = parsePaid(field(paidCol))
		}
		rows = append(rows, row)
	}

	return rows, skipped, nil
}

func parseAmount(s string) (int64, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	return strconv.ParseInt(s, 10, 64)
}

func parsePaid(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "paid", "x":
		return true
	}
	return false
}
