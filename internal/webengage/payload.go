// Package webengage shapes cleaned records into the user and event payload
// structures the delivery layer posts to WebEngage. Building payloads does
// no network I/O; the delivery client (rate limiting, retries, credentials)
// lives outside this service.
package webengage

import (
	"time"

	"github.com/plutus/webengage-pipeline/internal/pipeline"
)

// EventTimeLayout is the timestamp format the WebEngage events API accepts.
const EventTimeLayout = "2006-01-02T15:04:05-0700"

// User is one user-upsert payload.
type User struct {
	UserID     string            `json:"userId"`
	FirstName  string            `json:"firstName,omitempty"`
	LastName   string            `json:"lastName,omitempty"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Event is one event-track payload.
type Event struct {
	UserID    string         `json:"userId"`
	EventName string         `json:"eventName"`
	EventTime string         `json:"eventTime,omitempty"`
	EventData map[string]any `json:"eventData,omitempty"`
}

// Payloads bundles everything a run produces for delivery.
type Payloads struct {
	Users  []User  `json:"users"`
	Events []Event `json:"events"`
}

// Build converts a pipeline result into delivery payloads. Records without
// a UserID are skipped: WebEngage requires a stable identity and the team
// only delivers phone-verified users.
func Build(res *pipeline.Result) Payloads {
	prof := res.Profile
	enr := res.Enrichment

	out := Payloads{
		Users:  make([]User, 0, len(res.Records)),
		Events: make([]Event, 0, len(res.Records)),
	}

	for i := range res.Records {
		rec := &res.Records[i]
		userID := rec.UserID()
		if userID == "" {
			continue
		}

		out.Users = append(out.Users, buildUser(rec, &prof))
		out.Events = append(out.Events, buildEvent(rec, &prof, enr))
	}
	return out
}

func buildUser(rec *pipeline.Record, prof *pipeline.Profile) User {
	u := User{
		UserID:    rec.UserID(),
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
		Phone:     "+91" + rec.Phone,
	}
	if prof.Track != "" {
		u.Attributes = map[string]string{"track": prof.Track}
	}
	return u
}

func buildEvent(rec *pipeline.Record, prof *pipeline.Profile, enr pipeline.Enrichment) Event {
	ev := Event{
		UserID:    rec.UserID(),
		EventName: eventName(prof, enr),
		EventTime: eventTime(rec, prof, enr),
		EventData: map[string]any{
			"webinarId":   enr.WebinarID,
			"webinarName": enr.WebinarName,
			"webinarDate": enr.WebinarDate,
			"category":    enr.Category,
			"conductor":   enr.Conductor,
		},
	}

	if prof.IsAttendee() {
		ev.EventData["attended"] = rec.Attended
		ev.EventData["joinTime"] = rec.JoinTime
		ev.EventData["leaveTime"] = rec.LeaveTime
		if rec.TimeInSession != nil {
			ev.EventData["timeInSessionMinutes"] = int(*rec.TimeInSession)
		}
		if rec.IsGuest != "" {
			ev.EventData["isGuest"] = rec.IsGuest
		}
	} else {
		ev.EventData["registrationTime"] = rec.RegistrationTime
		ev.EventData["approvalStatus"] = rec.ApprovalStatus
		ev.EventData["registrationSource"] = rec.RegistrationSource
		ev.EventData["attendanceType"] = rec.AttendanceType
	}

	if tag := enr.BootcampDayTag(); tag != "" {
		ev.EventData["bootcampDay"] = tag
	}
	for k, v := range prof.ExtraAttributes {
		ev.EventData[k] = v
	}
	return ev
}

// eventName appends the bootcamp day tag so Day 1 and Day 2 sessions track
// as distinct events.
func eventName(prof *pipeline.Profile, enr pipeline.Enrichment) string {
	name := prof.EventName
	if name == "" {
		name = "Webinar Attended"
		if prof.Kind == pipeline.KindRegistration {
			name = "Webinar Registration"
		}
	}
	if prof.Kind == pipeline.KindBootcampDual && enr.BootcampDay != 0 {
		name += " - " + enr.BootcampDayTag()
	}
	return name
}

// eventTime prefers the person's own moment (join for attendees,
// registration for registrants) and falls back to the webinar start.
func eventTime(rec *pipeline.Record, prof *pipeline.Profile, enr pipeline.Enrichment) string {
	var at *time.Time
	if prof.IsAttendee() {
		at = rec.JoinAt()
	} else {
		at = rec.RegisteredAt()
	}
	if at == nil {
		at = enr.StartAt()
	}
	if at == nil {
		return ""
	}
	return at.Format(EventTimeLayout)
}
