package webengage

import (
	"strings"
	"testing"

	"github.com/plutus/webengage-pipeline/internal/pipeline"
)

func runFixture(t *testing.T, prof pipeline.Profile, dataRows []string) *pipeline.Result {
	t.Helper()

	var b strings.Builder
	b.WriteString("Topic,Webinar ID,Actual Start Time\n")
	b.WriteString("ACCA Bootcamp Day 1,989 8318 8454,07/06/2025 10:00:00 AM\n")
	if prof.IsAttendee() {
		b.WriteString("Attendee Details\n")
	} else {
		b.WriteString("Registrant Details\n")
	}
	b.WriteString(strings.Join(prof.RawColumns(), ",") + "\n")
	for _, r := range dataRows {
		b.WriteString(r + "\n")
	}

	res, err := pipeline.RunCSV(strings.NewReader(b.String()), prof)
	if err != nil {
		t.Fatalf("RunCSV: %v", err)
	}
	return res
}

func TestBuildSkipsRecordsWithoutUserID(t *testing.T) {
	prof := pipeline.Profile{
		Name: "attended", Kind: pipeline.KindWebinarAttended, EventName: "Webinar Attended",
		ConductorMap:       map[string]string{"989 8318 8454": "Sukhpreet Monga"},
		ApprovedConductors: []string{"Sukhpreet Monga"},
	}
	res := runFixture(t, prof, []string{
		"Yes,rahul sharma,rahul,sharma,rahul@example.com,07/06/2025 09:00:00 AM,approved,Web,Live,9876543210,07/06/2025 10:05:00 AM,07/06/2025 11:00:00 AM,55,No,india",
		"Yes,priya n,priya,n,priya@example.com,07/06/2025 09:10:00 AM,approved,Web,Live,,07/06/2025 10:06:00 AM,07/06/2025 10:50:00 AM,44,No,india",
	})

	p := Build(res)
	if len(p.Users) != 1 || len(p.Events) != 1 {
		t.Fatalf("payloads = %d users %d events, want 1 each", len(p.Users), len(p.Events))
	}
	if p.Users[0].UserID != "919876543210" {
		t.Errorf("UserID = %q", p.Users[0].UserID)
	}
	if p.Users[0].Phone != "+919876543210" {
		t.Errorf("Phone = %q", p.Users[0].Phone)
	}
	if p.Users[0].Email != "rahul@example.com" {
		t.Errorf("Email = %q", p.Users[0].Email)
	}
}

func TestBuildAttendeeEvent(t *testing.T) {
	prof := pipeline.Profile{
		Name: "attended", Kind: pipeline.KindWebinarAttended, EventName: "Webinar Attended",
		ConductorMap:       map[string]string{"989 8318 8454": "Sukhpreet Monga"},
		ApprovedConductors: []string{"Sukhpreet Monga"},
		ExtraAttributes:    map[string]any{"source": "zoom-export", "batch": 2025},
	}
	res := runFixture(t, prof, []string{
		"Yes,rahul sharma,rahul,sharma,rahul@example.com,07/06/2025 09:00:00 AM,approved,Web,Live,9876543210,07/06/2025 10:05:00 AM,07/06/2025 11:00:00 AM,55,No,india",
	})

	p := Build(res)
	ev := p.Events[0]
	if ev.EventName != "Webinar Attended" {
		t.Errorf("EventName = %q", ev.EventName)
	}
	if ev.EventTime != "2025-06-07T10:05:00+0000" {
		t.Errorf("EventTime = %q, want the join time", ev.EventTime)
	}
	if ev.EventData["webinarId"] != "989 8318 8454" {
		t.Errorf("webinarId = %v", ev.EventData["webinarId"])
	}
	if ev.EventData["timeInSessionMinutes"] != 55 {
		t.Errorf("timeInSessionMinutes = %v", ev.EventData["timeInSessionMinutes"])
	}
	if ev.EventData["conductor"] != "Sukhpreet Monga" {
		t.Errorf("conductor = %v", ev.EventData["conductor"])
	}
	if ev.EventData["source"] != "zoom-export" {
		t.Errorf("extra attribute missing: %v", ev.EventData["source"])
	}
	if ev.EventData["batch"] != 2025 {
		t.Errorf("non-string extra attribute = %v", ev.EventData["batch"])
	}
}

func TestBuildBootcampEventNameSuffix(t *testing.T) {
	prof := pipeline.Profile{
		Name: "bootcamp", Kind: pipeline.KindBootcampDual, EventName: "Bootcamp Attended",
		ConductorMap:       map[string]string{"989 8318 8454": "Sukhpreet Monga"},
		ApprovedConductors: []string{"Sukhpreet Monga"},
	}
	res := runFixture(t, prof, []string{
		"Yes,rahul sharma,rahul,sharma,rahul@example.com,07/06/2025 09:00:00 AM,approved,Web,Live,9876543210,07/06/2025 10:05:00 AM,07/06/2025 11:00:00 AM,55,No,india",
	})

	p := Build(res)
	if p.Events[0].EventName != "Bootcamp Attended - Day1" {
		t.Errorf("EventName = %q", p.Events[0].EventName)
	}
	if p.Events[0].EventData["bootcampDay"] != "Day1" {
		t.Errorf("bootcampDay = %v", p.Events[0].EventData["bootcampDay"])
	}
}

func TestBuildRegistrationEvent(t *testing.T) {
	prof := pipeline.Profile{
		Name: "registrations", Kind: pipeline.KindRegistration, EventName: "Webinar Registration",
		Track: "finance",
	}
	res := runFixture(t, prof, []string{
		"neha,gupta,neha@example.com,04/06/2025 08:00:00 AM,approved,9812345678,Facebook Ads,live",
	})

	p := Build(res)
	if len(p.Events) != 1 {
		t.Fatalf("events = %d", len(p.Events))
	}
	ev := p.Events[0]
	if ev.EventTime != "2025-06-04T08:00:00+0000" {
		t.Errorf("EventTime = %q, want the registration time", ev.EventTime)
	}
	if ev.EventData["registrationSource"] != "Facebook Ads" {
		t.Errorf("registrationSource = %v", ev.EventData["registrationSource"])
	}
	if _, ok := ev.EventData["joinTime"]; ok {
		t.Error("registration event carries session fields")
	}
	if p.Users[0].Attributes["track"] != "finance" {
		t.Errorf("track attribute = %v", p.Users[0].Attributes)
	}
}

func TestBuildFallsBackToWebinarStart(t *testing.T) {
	prof := pipeline.Profile{
		Name: "attended", Kind: pipeline.KindWebinarAttended, EventName: "Webinar Attended",
		ConductorMap:       map[string]string{"989 8318 8454": "Sukhpreet Monga"},
		ApprovedConductors: []string{"Sukhpreet Monga"},
	}
	res := runFixture(t, prof, []string{
		"Yes,rahul sharma,rahul,sharma,rahul@example.com,--,approved,Web,Live,9876543210,--,--,--,No,india",
	})

	p := Build(res)
	if p.Events[0].EventTime != "2025-06-07T10:00:00+0000" {
		t.Errorf("EventTime = %q, want the webinar start", p.Events[0].EventTime)
	}
}
