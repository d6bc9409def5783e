package pipeline

import "fmt"

// Kind selects which cleaning workflow a profile runs.
type Kind string

const (
	// KindWebinarAttended cleans the attendee report of a finished webinar.
	KindWebinarAttended Kind = "webinar_attended"
	// KindRegistration cleans a registrant report captured before the webinar.
	KindRegistration Kind = "registration"
	// KindBootcampDual cleans a bootcamp attendee report where the session
	// day (Day 1 / Day 2) is resolved and stamped onto every row.
	KindBootcampDual Kind = "bootcamp_dual"
)

// CategoryMode controls how the webinar category is resolved.
type CategoryMode string

const (
	// CategoryAuto scans the webinar title for category tokens. A non-empty
	// Category on the profile acts as an override and skips the scan.
	CategoryAuto CategoryMode = "auto"
	// CategoryFixed applies the profile's Category to every run unchanged.
	CategoryFixed CategoryMode = "fixed"
)

// Aggregation selects how Time in Session is combined when several source
// rows merge into one person. The team never settled on a single right
// answer (re-joins inflate a sum, overlapping devices inflate it further,
// but max undercounts genuine re-joins), so it is a per-profile choice.
type Aggregation string

const (
	AggregateSum Aggregation = "sum"
	AggregateMax Aggregation = "max"
)

// CategoryToken maps a lowercase substring of the webinar title to a
// category label. Tokens are tried in order; first hit wins.
type CategoryToken struct {
	Token    string `yaml:"token" json:"token"`
	Category string `yaml:"category" json:"category"`
}

// Profile is the full configuration of one cleaning run. It is read-only
// once a run starts.
type Profile struct {
	Name               string            `yaml:"name" json:"name"`
	Kind               Kind              `yaml:"kind" json:"kind"`
	EventName          string            `yaml:"event_name" json:"event_name"`
	Track              string            `yaml:"track,omitempty" json:"track,omitempty"`
	CategoryMode       CategoryMode      `yaml:"category_mode,omitempty" json:"category_mode"`
	Category           string            `yaml:"category,omitempty" json:"category,omitempty"`
	CategoryTokens     []CategoryToken   `yaml:"category_tokens,omitempty" json:"category_tokens,omitempty"`
	ConductorMap       map[string]string `yaml:"conductor_map,omitempty" json:"conductor_map,omitempty"`
	ApprovedConductors []string          `yaml:"approved_conductors,omitempty" json:"approved_conductors,omitempty"`
	DatetimeThreshold  float64           `yaml:"datetime_threshold,omitempty" json:"datetime_threshold"`
	DatetimeLayouts    []string          `yaml:"datetime_layouts,omitempty" json:"datetime_layouts,omitempty"`
	TimeAggregation    Aggregation       `yaml:"time_aggregation,omitempty" json:"time_aggregation"`
	ExtraAttributes    map[string]any    `yaml:"extra_attributes,omitempty" json:"extra_attributes,omitempty"`
}

// Canonical column names shared by the raw exports and the clean dataset.
const (
	ColAttended       = "Attended"
	ColUserName       = "User Name (Original Name)"
	ColFirstName      = "First Name"
	ColLastName       = "Last Name"
	ColEmail          = "Email"
	ColRegTime        = "Registration Time"
	ColApproval       = "Approval Status"
	ColRegSource      = "Registration Source"
	ColAttendanceType = "Attendance Type"
	ColPhone          = "Phone"
	ColJoinTime       = "Join Time"
	ColLeaveTime      = "Leave Time"
	ColTimeInSession  = "Time in Session (minutes)"
	ColIsGuest        = "Is Guest"
	ColCountry        = "Country/Region Name"
	ColSourceName     = "Source Name"
	ColUserID         = "UserID"
	ColWebinarDate    = "Webinar Date"
	ColBootcampDay    = "Bootcamp Day"
	ColCategory       = "Category"
	ColWebinarID      = "Webinar ID"
	ColWebinarName    = "Webinar name"
	ColConductor      = "Webinar conductor"
)

// attendeeRawColumns is the SOP header of a Zoom attendee report. An extra
// trailing Source Name column is tolerated and dropped before validation.
var attendeeRawColumns = []string{
	ColAttended, ColUserName, ColFirstName, ColLastName, ColEmail,
	ColRegTime, ColApproval, ColRegSource, ColAttendanceType, ColPhone,
	ColJoinTime, ColLeaveTime, ColTimeInSession, ColIsGuest, ColCountry,
}

// registrationRawColumns is the SOP header of a Zoom registrant report.
// Source Name is required here and becomes Registration Source on output.
var registrationRawColumns = []string{
	ColFirstName, ColLastName, ColEmail, ColRegTime, ColApproval,
	ColPhone, ColSourceName, ColAttendanceType,
}

var attendeeOutputColumns = []string{
	ColWebinarDate, ColBootcampDay, ColCategory, ColWebinarID, ColAttended,
	ColUserName, ColFirstName, ColLastName, ColEmail, ColPhone,
	ColRegTime, ColApproval, ColRegSource, ColAttendanceType,
	ColJoinTime, ColLeaveTime, ColTimeInSession, ColIsGuest, ColCountry,
	ColUserID, ColWebinarName, ColConductor,
}

var registrationOutputColumns = []string{
	ColUserName, ColFirstName, ColLastName, ColEmail, ColRegTime,
	ColApproval, ColPhone, ColRegSource, ColAttendanceType, ColUserID,
	ColWebinarID, ColWebinarName, ColWebinarDate,
}

// DefaultCategoryTokens is the house token map: ACCA/CMA/CFA/CPA program
// names matched inside webinar titles.
func DefaultCategoryTokens() []CategoryToken {
	return []CategoryToken{
		{Token: "acca", Category: "ACCA"},
		{Token: "cma", Category: "CMA"},
		{Token: "cfa", Category: "CFA"},
		{Token: "cpa", Category: "CPA"},
	}
}

// DefaultDatetimeLayouts lists the day-first timestamp shapes seen in Zoom
// exports, most common first.
func DefaultDatetimeLayouts() []string {
	return []string{
		"2/1/2006 3:04:05 PM",
		"2/1/2006 3:04 PM",
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"Jan 2, 2006 3:04:05 PM",
		"2/1/2006",
		"2006-01-02",
	}
}

const defaultDatetimeThreshold = 0.99

// WithDefaults returns a copy of the profile with every unset field filled
// from the house defaults. Explicitly empty (non-nil) maps and slices are
// kept as configured.
func (p Profile) WithDefaults() Profile {
	if p.Kind == "" {
		p.Kind = KindWebinarAttended
	}
	if p.CategoryMode == "" {
		p.CategoryMode = CategoryAuto
	}
	if p.CategoryTokens == nil {
		p.CategoryTokens = DefaultCategoryTokens()
	}
	if p.DatetimeThreshold <= 0 {
		p.DatetimeThreshold = defaultDatetimeThreshold
	}
	if p.DatetimeLayouts == nil {
		p.DatetimeLayouts = DefaultDatetimeLayouts()
	}
	if p.TimeAggregation == "" {
		p.TimeAggregation = AggregateSum
	}
	return p
}

// Validate rejects profiles that would misconfigure a run.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	switch p.Kind {
	case KindWebinarAttended, KindRegistration, KindBootcampDual:
	default:
		return fmt.Errorf("profile %s: unknown kind %q", p.Name, p.Kind)
	}
	switch p.CategoryMode {
	case CategoryAuto, CategoryFixed:
	default:
		return fmt.Errorf("profile %s: unknown category mode %q", p.Name, p.CategoryMode)
	}
	switch p.TimeAggregation {
	case AggregateSum, AggregateMax:
	default:
		return fmt.Errorf("profile %s: unknown time aggregation %q", p.Name, p.TimeAggregation)
	}
	if p.DatetimeThreshold < 0 || p.DatetimeThreshold > 1 {
		return fmt.Errorf("profile %s: datetime threshold %.2f outside [0,1]", p.Name, p.DatetimeThreshold)
	}
	return nil
}

// IsAttendee reports whether the profile consumes an attendee report
// (either plain webinar or bootcamp) rather than a registrant report.
func (p *Profile) IsAttendee() bool {
	return p.Kind != KindRegistration
}

// RawColumns is the required header set of the profile's source report.
func (p *Profile) RawColumns() []string {
	if p.IsAttendee() {
		return attendeeRawColumns
	}
	return registrationRawColumns
}

// OutputColumns is the exact, ordered header of the profile's clean dataset.
func (p *Profile) OutputColumns() []string {
	if p.IsAttendee() {
		return attendeeOutputColumns
	}
	return registrationOutputColumns
}
