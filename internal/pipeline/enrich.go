package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/plutus/webengage-pipeline/internal/zoomexport"
)

// Enrichment is the webinar-level metadata stamped onto every output row.
type Enrichment struct {
	WebinarID   string `json:"webinar_id"`
	WebinarName string `json:"webinar_name"`
	WebinarDate string `json:"webinar_date"`
	Category    string `json:"category"`
	Conductor   string `json:"conductor"`
	BootcampDay int    `json:"bootcamp_day,omitempty"`

	startAt *time.Time
}

// StartAt is the parsed webinar start, nil when the Topic section carried
// no parseable time.
func (e Enrichment) StartAt() *time.Time { return e.startAt }

// BootcampDayLabel renders the resolved day for the dataset column
// ("Day 1"), empty when unresolved or not a bootcamp run.
func (e Enrichment) BootcampDayLabel() string {
	if e.BootcampDay == 0 {
		return ""
	}
	return fmt.Sprintf("Day %d", e.BootcampDay)
}

// BootcampDayTag renders the resolved day for event metadata ("Day1").
func (e Enrichment) BootcampDayTag() string {
	if e.BootcampDay == 0 {
		return ""
	}
	return fmt.Sprintf("Day%d", e.BootcampDay)
}

var bootcampDayPattern = regexp.MustCompile(`(?i)day[ \-_]?([0-9])`)

// enrich resolves the webinar metadata for a run from the export's Topic
// section and the profile's maps.
func enrich(exp *zoomexport.Export, prof *Profile, rep *Report) Enrichment {
	topic := exp.Topic()

	enr := Enrichment{
		WebinarID:   topic.WebinarID,
		WebinarName: topic.Title,
	}

	if topic.StartRaw != "" {
		if t, ok := parseAny(topic.StartRaw, prof.DatetimeLayouts); ok {
			enr.WebinarDate = t.Format(OutputDateLayout)
			enr.startAt = &t
		}
	}

	enr.Category = resolveCategory(topic.Title, prof, rep)
	enr.Conductor = resolveConductor(exp, topic.WebinarID, prof, rep)

	if prof.Kind == KindBootcampDual {
		enr.BootcampDay = resolveBootcampDay(topic.Title, enr.startAt, rep)
	}

	return enr
}

// resolveCategory picks the program category. Fixed mode always uses the
// configured category as-is. Auto mode evaluates an ordered resolver chain,
// first non-empty answer wins: the configured override, then the title
// token scan. A miss is advisory.
func resolveCategory(title string, prof *Profile, rep *Report) string {
	if prof.CategoryMode == CategoryFixed {
		return prof.Category
	}

	resolvers := []func() string{
		func() string { return prof.Category },
		func() string { return scanCategoryTokens(title, prof.CategoryTokens) },
	}
	for _, resolve := range resolvers {
		if c := resolve(); c != "" {
			return c
		}
	}

	rep.warn(WarnCategoryMiss, 0, ColCategory, title, "no category token matched the webinar title")
	return ""
}

func scanCategoryTokens(title string, tokens []CategoryToken) string {
	lower := strings.ToLower(title)
	for _, tok := range tokens {
		if tok.Token != "" && strings.Contains(lower, strings.ToLower(tok.Token)) {
			return tok.Category
		}
	}
	return ""
}

// conductorResolver is one step of the conductor fallback chain. Resolvers
// run in priority order; the first non-empty answer wins.
type conductorResolver func() string

// conductorChain builds the ordered chain for one run: the profile's
// conductor map by Webinar ID, then the first panelist, then the host.
func conductorChain(exp *zoomexport.Export, webinarID string, prof *Profile) []conductorResolver {
	return []conductorResolver{
		func() string {
			if webinarID == "" {
				return ""
			}
			return prof.ConductorMap[webinarID]
		},
		func() string { return exp.PrimaryName(zoomexport.SectionPanelist) },
		func() string { return exp.PrimaryName(zoomexport.SectionHost) },
	}
}

// resolveConductor evaluates the chain and falls back to the Unknown
// literal. Any conductor outside the approved set is flagged but kept.
func resolveConductor(exp *zoomexport.Export, webinarID string, prof *Profile, rep *Report) string {
	name := ""
	for _, resolve := range conductorChain(exp, webinarID, prof) {
		if name = resolve(); name != "" {
			break
		}
	}
	if name == "" {
		name = "Unknown"
	} else {
		name = properCase(name)
	}

	if !conductorApproved(name, prof.ApprovedConductors) {
		rep.warn(WarnConductor, 0, ColConductor, name, "conductor not on the approved list")
	}
	return name
}

func conductorApproved(name string, approved []string) bool {
	for _, a := range approved {
		if strings.EqualFold(strings.TrimSpace(a), name) {
			return true
		}
	}
	return false
}

// resolveBootcampDay reads the day marker out of the title, falling back to
// the weekend convention (Saturday opens the bootcamp, Sunday closes it).
func resolveBootcampDay(title string, startAt *time.Time, rep *Report) int {
	if m := bootcampDayPattern.FindStringSubmatch(title); m != nil {
		if d := int(m[1][0] - '0'); d > 0 {
			return d
		}
	}
	if startAt != nil {
		switch startAt.Weekday() {
		case time.Saturday:
			return 1
		case time.Sunday:
			return 2
		}
	}
	rep.warn(WarnBootcampDay, 0, ColBootcampDay, title, "bootcamp day not inferable from title or date")
	return 0
}
