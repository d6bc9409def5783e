package pipeline

import "time"

// WarningCode classifies a row-level data quality finding.
type WarningCode string

const (
	WarnInvalidPhone   WarningCode = "invalid_phone"
	WarnBooleanValue   WarningCode = "boolean_value"
	WarnDatetimeParse  WarningCode = "datetime_parse"
	WarnSessionMinutes WarningCode = "session_minutes"
	WarnCategoryMiss   WarningCode = "category_unresolved"
	WarnConductor      WarningCode = "conductor_unapproved"
	WarnBootcampDay    WarningCode = "bootcamp_day_unresolved"
	WarnIdentityMiss   WarningCode = "identity_missing"
)

// Warning is one advisory finding. Row is the 1-based data row in the
// source section; 0 means the warning is not tied to a row.
type Warning struct {
	Code    WarningCode `json:"code"`
	Row     int         `json:"row,omitempty"`
	Field   string      `json:"field,omitempty"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
}

// GateStatus is the outcome of one validation gate.
type GateStatus string

const (
	GatePassed GateStatus = "passed"
	GateWarned GateStatus = "warned"
	GateFailed GateStatus = "failed"
)

// GateResult records how one of the five gates (A through E) resolved.
type GateResult struct {
	Gate   string     `json:"gate"`
	Status GateStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// FieldParseStats counts timestamp parse attempts for a single input field.
type FieldParseStats struct {
	Field     string `json:"field"`
	Attempted int    `json:"attempted"`
	Parsed    int    `json:"parsed"`
}

// DatetimeStats pools timestamp parse results across every datetime input
// of the run. Empty inputs (including the "--" placeholder) never count as
// attempts, so a report with no timestamps passes Gate D trivially.
type DatetimeStats struct {
	Threshold float64           `json:"threshold"`
	Attempted int               `json:"attempted"`
	Parsed    int               `json:"parsed"`
	Ratio     float64           `json:"ratio"`
	Fields    []FieldParseStats `json:"fields,omitempty"`
}

// Failures is the number of non-empty inputs that did not parse.
func (s DatetimeStats) Failures() int {
	return s.Attempted - s.Parsed
}

// Report caps the stored warning list; counts keep tallying past the cap.
const maxReportWarnings = 500

// Report is the full diagnostic record of one run. It accompanies the clean
// dataset on success and survives alone when a fatal gate stops the run.
type Report struct {
	RunID       string              `json:"run_id"`
	Profile     string              `json:"profile"`
	Kind        Kind                `json:"kind"`
	GeneratedAt time.Time           `json:"generated_at"`
	Webinar     Enrichment          `json:"webinar"`
	RawRows     int                 `json:"raw_rows"`
	OutputRows  int                 `json:"output_rows"`
	DroppedRows int                 `json:"dropped_rows"`
	MergedKeys  int                 `json:"merged_keys"`
	Merged      map[string]int      `json:"merged,omitempty"`
	Datetime    DatetimeStats       `json:"datetime"`
	Gates       []GateResult        `json:"gates"`
	Counts      map[WarningCode]int `json:"warning_counts,omitempty"`
	Warnings    []Warning           `json:"warnings,omitempty"`
}

func newReport(runID string, prof *Profile) *Report {
	return &Report{
		RunID:       runID,
		Profile:     prof.Name,
		Kind:        prof.Kind,
		GeneratedAt: time.Now().UTC(),
		Counts:      make(map[WarningCode]int),
	}
}

func (r *Report) warn(code WarningCode, row int, field, value, message string) {
	r.Counts[code]++
	if len(r.Warnings) >= maxReportWarnings {
		return
	}
	r.Warnings = append(r.Warnings, Warning{
		Code:    code,
		Row:     row,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (r *Report) gate(name string, status GateStatus, detail string) {
	r.Gates = append(r.Gates, GateResult{Gate: name, Status: status, Detail: detail})
}

// WarningCount returns the total findings for one code, including any past
// the stored cap.
func (r *Report) WarningCount(code WarningCode) int {
	return r.Counts[code]
}
