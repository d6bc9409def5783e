package zoomexport

import "fmt"

// Section names emitted by Zoom webinar report exports. A report file is a
// stack of sub-tables, each introduced by a row whose first cell is one of
// these names and whose remaining cells are empty.
const (
	SectionTopic      = "Topic"
	SectionHost       = "Host Details"
	SectionPanelist   = "Panelist Details"
	SectionAttendee   = "Attendee Details"
	SectionRegistrant = "Registrant Details"
)

var sectionNames = map[string]bool{
	SectionTopic:      true,
	SectionHost:       true,
	SectionPanelist:   true,
	SectionAttendee:   true,
	SectionRegistrant: true,
}

// Section is one named sub-table of an export: its header and its data rows.
// Rows are width-normalized to the header and cell-trimmed.
type Section struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Export is a fully split webinar report.
type Export struct {
	sections map[string]*Section
	order    []string
}

// Section returns the named section, or nil if the export does not contain it.
func (e *Export) Section(name string) *Section {
	if e == nil {
		return nil
	}
	return e.sections[name]
}

// Names lists the sections present, in file order.
func (e *Export) Names() []string {
	if e == nil {
		return nil
	}
	return e.order
}

// Require returns the named section or a SectionMissingError.
func (e *Export) Require(name string) (*Section, error) {
	sec := e.Section(name)
	if sec == nil {
		return nil, &SectionMissingError{Section: name}
	}
	return sec, nil
}

// TopicInfo is the webinar metadata carried by the Topic section.
type TopicInfo struct {
	WebinarID string `json:"webinar_id"`
	Title     string `json:"title"`
	StartRaw  string `json:"start_raw"`
}

// SectionMissingError reports an export without a section the caller needs.
type SectionMissingError struct {
	Section string
}

func (e *SectionMissingError) Error() string {
	return fmt.Sprintf("export has no %q section", e.Section)
}
