package database

import (
	"encoding/csv"
	"io"
)

// MembersReportHeader is the header row of the members report.
var MembersReportHeader = []string{"Std Id", "First Name", "Last Name", "Status"}

// WriteMembersReport writes a room's members as CSV, one row per member in
// join order.
func WriteMembersReport(w io.Writer, members []Member) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MembersReportHeader); err != nil {
		return err
	}
	for _, m := range members {
		if err := cw.Write([]string{m.StdID, m.FirstName, m.LastName, string(m.CheckStatus)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
