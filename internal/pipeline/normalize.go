package pipeline

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/plutus/webengage-pipeline/internal/zoomexport"
)

// Canonical rendering of every timestamp and date in the clean dataset.
const (
	OutputTimestampLayout = "02/01/2006 03:04:05 PM"
	OutputDateLayout      = "02/01/2006"
)

// Record is one person row after normalization. Registration runs leave the
// session fields empty. Parsed timestamps ride along unexported so the
// deduplicator and payload builder never re-parse the rendered strings.
type Record struct {
	Row int `json:"row"`

	Attended           string   `json:"attended,omitempty"`
	UserName           string   `json:"user_name,omitempty"`
	FirstName          string   `json:"first_name,omitempty"`
	LastName           string   `json:"last_name,omitempty"`
	Email              string   `json:"email,omitempty"`
	RegistrationTime   string   `json:"registration_time,omitempty"`
	ApprovalStatus     string   `json:"approval_status,omitempty"`
	RegistrationSource string   `json:"registration_source,omitempty"`
	AttendanceType     string   `json:"attendance_type,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	JoinTime           string   `json:"join_time,omitempty"`
	LeaveTime          string   `json:"leave_time,omitempty"`
	TimeInSession      *float64 `json:"time_in_session,omitempty"`
	IsGuest            string   `json:"is_guest,omitempty"`
	Country            string   `json:"country,omitempty"`

	MergedRows int `json:"merged_rows,omitempty"`

	joinAt  *time.Time
	leaveAt *time.Time
	regAt   *time.Time
}

// UserID is the delivery identity: the 91 country prefix plus the 10-digit
// phone, or empty when the record has no valid phone.
func (r *Record) UserID() string {
	if r.Phone == "" {
		return ""
	}
	return "91" + r.Phone
}

// JoinAt is the parsed (post-merge, earliest) join time, nil when unknown.
func (r *Record) JoinAt() *time.Time { return r.joinAt }

// RegisteredAt is the parsed registration time, nil when unknown.
func (r *Record) RegisteredAt() *time.Time { return r.regAt }

// SessionMinutes renders the aggregated session time, floored to whole
// minutes. Unknown stays empty rather than becoming zero.
func (r *Record) SessionMinutes() string {
	if r.TimeInSession == nil {
		return ""
	}
	return strconv.Itoa(int(*r.TimeInSession))
}

type normalizer struct {
	prof   *Profile
	rep    *Report
	fields map[string]*FieldParseStats
	order  []string
}

func newNormalizer(prof *Profile, rep *Report) *normalizer {
	return &normalizer{
		prof:   prof,
		rep:    rep,
		fields: make(map[string]*FieldParseStats),
	}
}

// normalizeSection turns the people section into records, applying every
// canonical form and collecting parse statistics for Gate D.
func (n *normalizer) normalizeSection(sec *zoomexport.Section) []Record {
	idx := make(map[string]int, len(sec.Columns))
	for i, name := range sec.Columns {
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return collapseSpace(row[i])
	}

	records := make([]Record, 0, len(sec.Rows))
	for i, row := range sec.Rows {
		rec := Record{Row: i + 1, MergedRows: 1}

		rec.FirstName = properCase(cell(row, ColFirstName))
		rec.LastName = properCase(cell(row, ColLastName))
		rec.Email = strings.ToLower(cell(row, ColEmail))
		rec.ApprovalStatus = cell(row, ColApproval)
		rec.AttendanceType = properCase(cell(row, ColAttendanceType))
		rec.RegistrationTime, rec.regAt = n.datetime(ColRegTime, cell(row, ColRegTime), rec.Row)
		rec.Phone = n.phone(cell(row, ColPhone), rec.Row)

		if n.prof.IsAttendee() {
			rec.Attended = n.boolean(ColAttended, cell(row, ColAttended), rec.Row)
			rec.UserName = properCase(cell(row, ColUserName))
			rec.RegistrationSource = cell(row, ColRegSource)
			rec.JoinTime, rec.joinAt = n.datetime(ColJoinTime, cell(row, ColJoinTime), rec.Row)
			rec.LeaveTime, rec.leaveAt = n.datetime(ColLeaveTime, cell(row, ColLeaveTime), rec.Row)
			rec.TimeInSession = n.minutes(cell(row, ColTimeInSession), rec.Row)
			rec.IsGuest = n.boolean(ColIsGuest, cell(row, ColIsGuest), rec.Row)
			rec.Country = properCase(cell(row, ColCountry))
		} else {
			// Registrant reports carry the acquisition source under
			// Source Name; the clean dataset names it Registration Source.
			rec.RegistrationSource = cell(row, ColSourceName)
		}

		records = append(records, rec)
	}

	n.flushDatetimeStats()
	return records
}

// backfillPhones copies the first valid phone seen for an email onto other
// rows of the same email that lack one, so re-joins from a second device
// still collapse into a single identity.
func backfillPhones(records []Record) {
	byEmail := make(map[string]string)
	for _, rec := range records {
		if rec.Phone != "" && rec.Email != "" {
			if _, ok := byEmail[rec.Email]; !ok {
				byEmail[rec.Email] = rec.Phone
			}
		}
	}
	for i := range records {
		if records[i].Phone == "" && records[i].Email != "" {
			records[i].Phone = byEmail[records[i].Email]
		}
	}
}

func (n *normalizer) phone(raw string, row int) string {
	if raw == "" {
		return ""
	}
	digits, ok := normalizePhone(raw)
	if !ok {
		n.rep.warn(WarnInvalidPhone, row, ColPhone, raw, "phone does not normalize to 10 digits")
		return ""
	}
	return digits
}

func (n *normalizer) boolean(field, raw string, row int) string {
	val, ok := normalizeBool(raw)
	if !ok {
		n.rep.warn(WarnBooleanValue, row, field, raw, "unrecognized boolean token")
	}
	return val
}

func (n *normalizer) datetime(field, raw string, row int) (string, *time.Time) {
	if raw == "--" {
		raw = ""
	}
	if raw == "" {
		return "", nil
	}
	stats := n.fieldStats(field)
	stats.Attempted++
	t, ok := parseAny(raw, n.prof.DatetimeLayouts)
	if !ok {
		n.rep.warn(WarnDatetimeParse, row, field, raw, "unparseable timestamp")
		return "", nil
	}
	stats.Parsed++
	return t.Format(OutputTimestampLayout), &t
}

func (n *normalizer) minutes(raw string, row int) *float64 {
	if raw == "" || raw == "--" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		n.rep.warn(WarnSessionMinutes, row, ColTimeInSession, raw, "non-numeric session minutes")
		return nil
	}
	return &v
}

func (n *normalizer) fieldStats(field string) *FieldParseStats {
	if s, ok := n.fields[field]; ok {
		return s
	}
	s := &FieldParseStats{Field: field}
	n.fields[field] = s
	n.order = append(n.order, field)
	return s
}

func (n *normalizer) flushDatetimeStats() {
	d := &n.rep.Datetime
	d.Threshold = n.prof.DatetimeThreshold
	for _, field := range n.order {
		s := n.fields[field]
		d.Fields = append(d.Fields, *s)
		d.Attempted += s.Attempted
		d.Parsed += s.Parsed
	}
	if d.Attempted == 0 {
		d.Ratio = 1
		return
	}
	d.Ratio = float64(d.Parsed) / float64(d.Attempted)
}

// collapseSpace trims a cell and squeezes interior whitespace runs down to
// single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// properCase lowercases each whitespace-delimited word and uppercases its
// first rune. A word is a whole whitespace token, so "anne-marie" renders
// as "Anne-marie", not "Anne-Marie".
func properCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// normalizePhone reduces a raw phone to its digits, strips the 91 country
// prefix only when the result is exactly 12 digits, and accepts only
// 10-digit outcomes.
func normalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

// normalizeBool maps the boolean tokens Zoom emits to canonical Yes/No.
// Empty stays empty (unknown); anything else is unrecognized.
func normalizeBool(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case "yes", "true", "1", "y":
		return "Yes", true
	case "no", "false", "0", "n":
		return "No", true
	}
	return "", false
}

func parseAny(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
