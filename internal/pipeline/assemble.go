package pipeline

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// Table is the clean dataset: an exact, ordered header and string rows.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// CSV renders the table with its header row.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// synthesizeUserNames fills the display name of registrant records from the
// name parts; registrant reports carry no user name column of their own.
func synthesizeUserNames(records []Record) {
	for i := range records {
		if records[i].UserName == "" {
			records[i].UserName = strings.TrimSpace(records[i].FirstName + " " + records[i].LastName)
		}
	}
}

// assemble renders the deduplicated records into the profile's fixed column
// order with the run's enrichment stamped onto every row.
func assemble(records []Record, enr Enrichment, prof *Profile) *Table {
	table := &Table{
		Columns: prof.OutputColumns(),
		Rows:    make([][]string, 0, len(records)),
	}
	for i := range records {
		rec := &records[i]
		if prof.IsAttendee() {
			table.Rows = append(table.Rows, attendeeRow(rec, enr))
		} else {
			table.Rows = append(table.Rows, registrationRow(rec, enr))
		}
	}
	return table
}

func attendeeRow(rec *Record, enr Enrichment) []string {
	return []string{
		enr.WebinarDate,
		enr.BootcampDayLabel(),
		enr.Category,
		enr.WebinarID,
		rec.Attended,
		rec.UserName,
		rec.FirstName,
		rec.LastName,
		rec.Email,
		rec.Phone,
		rec.RegistrationTime,
		rec.ApprovalStatus,
		rec.RegistrationSource,
		rec.AttendanceType,
		rec.JoinTime,
		rec.LeaveTime,
		rec.SessionMinutes(),
		rec.IsGuest,
		rec.Country,
		rec.UserID(),
		enr.WebinarName,
		enr.Conductor,
	}
}

func registrationRow(rec *Record, enr Enrichment) []string {
	return []string{
		rec.UserName,
		rec.FirstName,
		rec.LastName,
		rec.Email,
		rec.RegistrationTime,
		rec.ApprovalStatus,
		rec.Phone,
		rec.RegistrationSource,
		rec.AttendanceType,
		rec.UserID(),
		enr.WebinarID,
		enr.WebinarName,
		enr.WebinarDate,
	}
}
