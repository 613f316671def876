package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{
	"member_id",
	"name",
	"war_hits",
	"under_threshold_hits",
	"off_target_hits",
	"assists",
	"losses",
	"respect",
}

// WriteCSV exports a report's contributions
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range r.Contributions {
		if err := cw.Write([]string{
			strconv.FormatInt(c.MemberID, 10),
			c.Name,
			strconv.Itoa(c.WarHits),
			strconv.Itoa(c.UnderThresholdHits),
			strconv.Itoa(c.OffTargetHits),
			strconv.Itoa(c.Assists),
			strconv.Itoa(c.Losses),
			strconv.FormatFloat(c.Respect, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
