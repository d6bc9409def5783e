package pipeline

import (
	"testing"
	"time"
)

func ts(t *testing.T, value string) (*time.Time, string) {
	t.Helper()
	parsed, ok := parseAny(value, DefaultDatetimeLayouts())
	if !ok {
		t.Fatalf("fixture timestamp %q did not parse", value)
	}
	return &parsed, parsed.Format(OutputTimestampLayout)
}

func minutes(v float64) *float64 { return &v }

func attendeeProfile() Profile {
	return Profile{Name: "t", Kind: KindWebinarAttended}.WithDefaults()
}

func TestDedupeMergesByPhone(t *testing.T) {
	prof := attendeeProfile()
	rep := newReport("test-run", &prof)

	join1, join1s := ts(t, "01/06/2025 10:00:00 AM")
	leave1, leave1s := ts(t, "01/06/2025 10:30:00 AM")
	join2, _ := ts(t, "01/06/2025 10:05:00 AM")
	leave2, leave2s := ts(t, "01/06/2025 11:00:00 AM")

	records := []Record{
		{
			Row: 1, Phone: "9876543210", Email: "a@example.com",
			UserName: "Rahul Sharma", Attended: "Yes", IsGuest: "No",
			JoinTime: join1s, joinAt: join1,
			LeaveTime: leave1s, leaveAt: leave1,
			TimeInSession: minutes(30), MergedRows: 1,
		},
		{
			Row: 2, Phone: "9876543210", Email: "b@example.com",
			Attended: "No", IsGuest: "",
			JoinTime: join2.Format(OutputTimestampLayout), joinAt: join2,
			LeaveTime: leave2s, leaveAt: leave2,
			TimeInSession: minutes(55), MergedRows: 1,
		},
	}

	out := dedupe(records, &prof, rep)
	if len(out) != 1 {
		t.Fatalf("output rows = %d, want 1", len(out))
	}

	m := out[0]
	if m.JoinTime != join1s {
		t.Errorf("JoinTime = %q, want earliest %q", m.JoinTime, join1s)
	}
	if m.LeaveTime != leave2s {
		t.Errorf("LeaveTime = %q, want latest %q", m.LeaveTime, leave2s)
	}
	if m.TimeInSession == nil || *m.TimeInSession != 85 {
		t.Errorf("TimeInSession = %v, want summed 85", m.TimeInSession)
	}
	if m.Attended != "Yes" {
		t.Errorf("Attended = %q, any Yes should win", m.Attended)
	}
	if m.IsGuest != "" {
		t.Errorf("IsGuest = %q, mixed No/unknown should stay unknown", m.IsGuest)
	}
	if m.Email != "a@example.com" {
		t.Errorf("Email = %q, want first non-empty in row order", m.Email)
	}
	if m.MergedRows != 2 {
		t.Errorf("MergedRows = %d", m.MergedRows)
	}
	if rep.MergedKeys != 1 || rep.Merged["9876543210"] != 2 {
		t.Errorf("report merge stats = %d %v", rep.MergedKeys, rep.Merged)
	}
}

func TestDedupeMaxAggregation(t *testing.T) {
	prof := attendeeProfile()
	prof.TimeAggregation = AggregateMax
	rep := newReport("test-run", &prof)

	records := []Record{
		{Row: 1, Phone: "9876543210", TimeInSession: minutes(30), MergedRows: 1},
		{Row: 2, Phone: "9876543210", TimeInSession: minutes(55), MergedRows: 1},
		{Row: 3, Phone: "9876543210", MergedRows: 1},
	}

	out := dedupe(records, &prof, rep)
	if len(out) != 1 {
		t.Fatalf("output rows = %d", len(out))
	}
	if out[0].TimeInSession == nil || *out[0].TimeInSession != 55 {
		t.Errorf("TimeInSession = %v, want max 55", out[0].TimeInSession)
	}
}

func TestDedupeAllUnknownMinutesStaysUnknown(t *testing.T) {
	prof := attendeeProfile()
	rep := newReport("test-run", &prof)

	records := []Record{
		{Row: 1, Phone: "9876543210", MergedRows: 1},
		{Row: 2, Phone: "9876543210", MergedRows: 1},
	}

	out := dedupe(records, &prof, rep)
	if out[0].TimeInSession != nil {
		t.Errorf("TimeInSession = %v, want unknown", *out[0].TimeInSession)
	}
	if out[0].SessionMinutes() != "" {
		t.Errorf("SessionMinutes = %q, unknown must not become zero", out[0].SessionMinutes())
	}
}

func TestDedupeEmailFallbackAndOrder(t *testing.T) {
	prof := attendeeProfile()
	rep := newReport("test-run", &prof)

	records := []Record{
		{Row: 1, Phone: "9876543210", Email: "x@example.com", MergedRows: 1},
		{Row: 2, Email: "y@example.com", MergedRows: 1},
		{Row: 3, Phone: "9876543210", MergedRows: 1},
		{Row: 4, Email: "z@example.com", MergedRows: 1},
	}

	out := dedupe(records, &prof, rep)
	if len(out) != 3 {
		t.Fatalf("output rows = %d, want 3", len(out))
	}
	// First-seen key order: phone group, then the two email identities.
	if out[0].Phone != "9876543210" || out[1].Email != "y@example.com" || out[2].Email != "z@example.com" {
		t.Errorf("key order = %q %q %q", out[0].Phone, out[1].Email, out[2].Email)
	}
}

func TestDedupeDropsRowsWithoutIdentity(t *testing.T) {
	prof := attendeeProfile()
	rep := newReport("test-run", &prof)

	records := []Record{
		{Row: 1, UserName: "Ghost", MergedRows: 1},
		{Row: 2, Email: "real@example.com", MergedRows: 1},
	}

	out := dedupe(records, &prof, rep)
	if len(out) != 1 {
		t.Fatalf("output rows = %d, want 1", len(out))
	}
	if rep.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d", rep.DroppedRows)
	}
	if rep.WarningCount(WarnIdentityMiss) != 1 {
		t.Errorf("identity warnings = %d", rep.WarningCount(WarnIdentityMiss))
	}
}

func TestDedupeIsGuestTriState(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"any yes wins", []string{"No", "Yes", "No"}, "Yes"},
		{"all no", []string{"No", "No"}, "No"},
		{"unknown blocks all-no", []string{"No", ""}, ""},
		{"all unknown", []string{"", ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := make([]Record, len(tt.values))
			for i, v := range tt.values {
				members[i] = Record{Row: i + 1, IsGuest: v}
			}
			if got := mergeIsGuest(members); got != tt.want {
				t.Errorf("mergeIsGuest(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestMergeRegistrationEarliestTime(t *testing.T) {
	prof := Profile{Name: "t", Kind: KindRegistration}.WithDefaults()
	rep := newReport("test-run", &prof)

	late, lateS := ts(t, "05/06/2025 09:15:00 AM")
	early, earlyS := ts(t, "04/06/2025 08:00:00 AM")

	records := []Record{
		{Row: 1, Phone: "9812345678", RegistrationTime: lateS, regAt: late,
			RegistrationSource: "Facebook Ads", MergedRows: 1},
		{Row: 2, Phone: "9812345678", RegistrationTime: earlyS, regAt: early,
			RegistrationSource: "Instagram", MergedRows: 1},
	}

	out := dedupe(records, &prof, rep)
	if len(out) != 1 {
		t.Fatalf("output rows = %d", len(out))
	}
	if out[0].RegistrationTime != earlyS {
		t.Errorf("RegistrationTime = %q, want earliest %q", out[0].RegistrationTime, earlyS)
	}
	if out[0].RegistrationSource != "Facebook Ads" {
		t.Errorf("RegistrationSource = %q, want first non-empty", out[0].RegistrationSource)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	prof := attendeeProfile()
	rep := newReport("test-run", &prof)

	join1, _ := ts(t, "01/06/2025 10:00:00 AM")
	join2, _ := ts(t, "01/06/2025 10:05:00 AM")

	records := []Record{
		{Row: 1, Phone: "9876543210", Email: "a@example.com", joinAt: join1,
			JoinTime: join1.Format(OutputTimestampLayout), TimeInSession: minutes(30), MergedRows: 1},
		{Row: 2, Phone: "9876543210", joinAt: join2,
			JoinTime: join2.Format(OutputTimestampLayout), TimeInSession: minutes(55), MergedRows: 1},
		{Row: 3, Email: "b@example.com", MergedRows: 1},
	}

	first := dedupe(records, &prof, rep)

	rep2 := newReport("test-run-2", &prof)
	second := dedupe(first, &prof, rep2)

	if len(first) != len(second) {
		t.Fatalf("second pass changed row count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Phone != b.Phone || a.Email != b.Email || a.JoinTime != b.JoinTime ||
			a.LeaveTime != b.LeaveTime || a.SessionMinutes() != b.SessionMinutes() ||
			a.Attended != b.Attended || a.IsGuest != b.IsGuest {
			t.Errorf("row %d differs after second pass: %+v vs %+v", i, a, b)
		}
	}
	if rep2.MergedKeys != 0 {
		t.Errorf("second pass merged %d keys, want 0", rep2.MergedKeys)
	}
}
