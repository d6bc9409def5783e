package pipeline

import "fmt"

// gateA validates the raw people-section header against the profile's
// required column set. Order does not matter, names are case-sensitive, and
// attendee reports may carry a Source Name column that is dropped here.
func gateA(columns []string, prof *Profile, rep *Report) error {
	required := prof.RawColumns()
	want := make(map[string]bool, len(required))
	for _, c := range required {
		want[c] = true
	}

	seen := make(map[string]bool, len(columns))
	var unexpected []string
	for _, c := range columns {
		if c == "" {
			continue
		}
		seen[c] = true
		if want[c] {
			continue
		}
		if prof.IsAttendee() && c == ColSourceName {
			continue
		}
		unexpected = append(unexpected, c)
	}

	var missing []string
	for _, c := range required {
		if !seen[c] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 || len(unexpected) > 0 {
		err := &SchemaMismatchError{Gate: "A", Missing: missing, Unexpected: unexpected}
		rep.gate("A", GateFailed, err.Error())
		return err
	}
	rep.gate("A", GatePassed, "")
	return nil
}

// gateB verifies the assembled dataset header: exact names in exact order.
func gateB(columns []string, prof *Profile, rep *Report) error {
	want := prof.OutputColumns()
	if len(columns) == len(want) {
		match := true
		for i := range want {
			if columns[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			rep.gate("B", GatePassed, "")
			return nil
		}
	}

	wantSet := make(map[string]bool, len(want))
	for _, c := range want {
		wantSet[c] = true
	}
	gotSet := make(map[string]bool, len(columns))
	var unexpected []string
	for _, c := range columns {
		gotSet[c] = true
		if !wantSet[c] {
			unexpected = append(unexpected, c)
		}
	}
	var missing []string
	for _, c := range want {
		if !gotSet[c] {
			missing = append(missing, c)
		}
	}

	err := &SchemaMismatchError{Gate: "B", Missing: missing, Unexpected: unexpected}
	rep.gate("B", GateFailed, err.Error())
	return err
}

// gateC audits the output boolean columns. Advisory: unknowns are counted,
// never fatal. Registration datasets carry no boolean columns.
func gateC(table *Table, prof *Profile, rep *Report) {
	if !prof.IsAttendee() {
		rep.gate("C", GatePassed, "no boolean columns")
		return
	}

	cols := map[int]bool{}
	for i, name := range table.Columns {
		if name == ColAttended || name == ColIsGuest {
			cols[i] = true
		}
	}

	unknown := 0
	for _, row := range table.Rows {
		for i := range cols {
			if i >= len(row) {
				continue
			}
			if v := row[i]; v != "Yes" && v != "No" {
				unknown++
			}
		}
	}

	if unknown > 0 {
		rep.gate("C", GateWarned, fmt.Sprintf("%d boolean cells not Yes/No", unknown))
		return
	}
	rep.gate("C", GatePassed, "")
}

// gateD enforces the pooled timestamp parse ratio against the profile's
// threshold. Zero attempts passes trivially.
func gateD(rep *Report) error {
	d := rep.Datetime
	if d.Ratio < d.Threshold {
		err := &DatetimeQualityError{Ratio: d.Ratio, Threshold: d.Threshold, Failures: d.Failures()}
		rep.gate("D", GateFailed, err.Error())
		return err
	}
	rep.gate("D", GatePassed, fmt.Sprintf("parsed %d of %d timestamps", d.Parsed, d.Attempted))
	return nil
}

// gateE summarizes phone quality: invalid phones that fell back to email
// identity and rows dropped with no identity at all.
func gateE(rep *Report) {
	invalid := rep.Counts[WarnInvalidPhone]
	dropped := rep.Counts[WarnIdentityMiss]
	if invalid+dropped > 0 {
		rep.gate("E", GateWarned,
			fmt.Sprintf("%d invalid phones, %d rows dropped without identity", invalid, dropped))
		return
	}
	rep.gate("E", GatePassed, "")
}
