// Package pipeline cleans Zoom webinar exports into the SOP dataset shape:
// section-aware parsing feeds schema gating, field normalization,
// identity-keyed deduplication, and webinar metadata enrichment. One call to
// Run is one complete, synchronous transform with no shared state; the
// profile is read-only throughout.
package pipeline

import (
	"io"

	"github.com/google/uuid"

	"github.com/plutus/webengage-pipeline/internal/zoomexport"
)

// Result binds the artifacts of a successful run: the clean dataset, the
// diagnostic report, and the structured records the payload builder
// consumes.
type Result struct {
	Table      *Table
	Report     *Report
	Records    []Record
	Enrichment Enrichment
	Profile    Profile
}

// Run executes the full cleaning pipeline on a parsed export. A fatal gate
// (A, B, or D) or a missing required section returns an error and no
// partial output; advisory findings land in the report.
func Run(exp *zoomexport.Export, prof Profile) (*Result, error) {
	prof = prof.WithDefaults()
	if err := prof.Validate(); err != nil {
		return nil, err
	}

	rep := newReport(uuid.NewString(), &prof)

	sec, err := peopleSection(exp, &prof)
	if err != nil {
		return nil, err
	}
	rep.RawRows = len(sec.Rows)

	if err := gateA(sec.Columns, &prof, rep); err != nil {
		return nil, err
	}

	records := newNormalizer(&prof, rep).normalizeSection(sec)
	if prof.IsAttendee() {
		backfillPhones(records)
	}

	records = dedupe(records, &prof, rep)

	enr := enrich(exp, &prof, rep)
	rep.Webinar = enr

	if !prof.IsAttendee() {
		synthesizeUserNames(records)
	}

	table := assemble(records, enr, &prof)

	if err := gateB(table.Columns, &prof, rep); err != nil {
		return nil, err
	}
	gateC(table, &prof, rep)
	if err := gateD(rep); err != nil {
		return nil, err
	}
	gateE(rep)

	rep.OutputRows = len(table.Rows)

	return &Result{
		Table:      table,
		Report:     rep,
		Records:    records,
		Enrichment: enr,
		Profile:    prof,
	}, nil
}

// RunCSV parses a raw export stream and runs the pipeline on it.
func RunCSV(r io.Reader, prof Profile) (*Result, error) {
	exp, err := zoomexport.Parse(r)
	if err != nil {
		return nil, err
	}
	return Run(exp, prof)
}

// peopleSection locates the profile's person table. Registrant exports in
// the wild sometimes label it Attendee Details, so registration runs accept
// either name.
func peopleSection(exp *zoomexport.Export, prof *Profile) (*zoomexport.Section, error) {
	if prof.IsAttendee() {
		return exp.Require(zoomexport.SectionAttendee)
	}
	if sec := exp.Section(zoomexport.SectionRegistrant); sec != nil {
		return sec, nil
	}
	if sec := exp.Section(zoomexport.SectionAttendee); sec != nil {
		return sec, nil
	}
	return nil, &zoomexport.SectionMissingError{Section: zoomexport.SectionRegistrant}
}
