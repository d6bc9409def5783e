package pipeline

// identityKey resolves the dedup identity of a record: a valid phone wins,
// email is the fallback. The display form (no prefix) goes into the report.
func identityKey(rec *Record) (key, display string) {
	if rec.Phone != "" {
		return "p:" + rec.Phone, rec.Phone
	}
	if rec.Email != "" {
		return "e:" + rec.Email, rec.Email
	}
	return "", ""
}

// dedupe collapses records sharing an identity into one, preserving
// first-seen key order. Records with no identity are dropped and counted.
// Running dedupe on its own output is a no-op.
func dedupe(records []Record, prof *Profile, rep *Report) []Record {
	type group struct {
		display string
		members []Record
	}
	var order []string
	groups := make(map[string]*group)

	for _, rec := range records {
		key, display := identityKey(&rec)
		if key == "" {
			rep.warn(WarnIdentityMiss, rec.Row, "", "", "no valid phone or email, row dropped")
			rep.DroppedRows++
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{display: display}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, rec)
	}

	out := make([]Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g.members) > 1 {
			rep.MergedKeys++
			if rep.Merged == nil {
				rep.Merged = make(map[string]int)
			}
			rep.Merged[g.display] = len(g.members)
		}
		if prof.IsAttendee() {
			out = append(out, mergeAttendee(g.members, prof))
		} else {
			out = append(out, mergeRegistration(g.members))
		}
	}
	return out
}

// mergeAttendee combines every source row of one person: earliest join,
// latest leave, aggregated session minutes, tri-state booleans, and first
// non-empty value (in original row order) for everything else.
func mergeAttendee(members []Record, prof *Profile) Record {
	merged := members[0]
	merged.MergedRows = len(members)
	if len(members) == 1 {
		return merged
	}

	merged.UserName = firstNonEmpty(members, func(r *Record) string { return r.UserName })
	merged.FirstName = firstNonEmpty(members, func(r *Record) string { return r.FirstName })
	merged.LastName = firstNonEmpty(members, func(r *Record) string { return r.LastName })
	merged.Email = firstNonEmpty(members, func(r *Record) string { return r.Email })
	merged.Phone = firstNonEmpty(members, func(r *Record) string { return r.Phone })
	merged.ApprovalStatus = firstNonEmpty(members, func(r *Record) string { return r.ApprovalStatus })
	merged.RegistrationSource = firstNonEmpty(members, func(r *Record) string { return r.RegistrationSource })
	merged.AttendanceType = firstNonEmpty(members, func(r *Record) string { return r.AttendanceType })
	merged.Country = firstNonEmpty(members, func(r *Record) string { return r.Country })

	merged.RegistrationTime, merged.regAt = "", nil
	for i := range members {
		if members[i].RegistrationTime != "" {
			merged.RegistrationTime = members[i].RegistrationTime
			merged.regAt = members[i].regAt
			break
		}
	}

	merged.JoinTime, merged.joinAt = "", nil
	for i := range members {
		m := &members[i]
		if m.joinAt == nil {
			continue
		}
		if merged.joinAt == nil || m.joinAt.Before(*merged.joinAt) {
			merged.JoinTime, merged.joinAt = m.JoinTime, m.joinAt
		}
	}

	merged.LeaveTime, merged.leaveAt = "", nil
	for i := range members {
		m := &members[i]
		if m.leaveAt == nil {
			continue
		}
		if merged.leaveAt == nil || m.leaveAt.After(*merged.leaveAt) {
			merged.LeaveTime, merged.leaveAt = m.LeaveTime, m.leaveAt
		}
	}

	merged.TimeInSession = aggregateMinutes(members, prof.TimeAggregation)
	merged.Attended = mergeAttended(members)
	merged.IsGuest = mergeIsGuest(members)
	return merged
}

// mergeRegistration keeps the earliest parsed Registration Time and the
// first non-empty value of every other field.
func mergeRegistration(members []Record) Record {
	merged := members[0]
	merged.MergedRows = len(members)
	if len(members) == 1 {
		return merged
	}

	merged.FirstName = firstNonEmpty(members, func(r *Record) string { return r.FirstName })
	merged.LastName = firstNonEmpty(members, func(r *Record) string { return r.LastName })
	merged.Email = firstNonEmpty(members, func(r *Record) string { return r.Email })
	merged.Phone = firstNonEmpty(members, func(r *Record) string { return r.Phone })
	merged.ApprovalStatus = firstNonEmpty(members, func(r *Record) string { return r.ApprovalStatus })
	merged.RegistrationSource = firstNonEmpty(members, func(r *Record) string { return r.RegistrationSource })
	merged.AttendanceType = firstNonEmpty(members, func(r *Record) string { return r.AttendanceType })

	merged.RegistrationTime, merged.regAt = "", nil
	for i := range members {
		m := &members[i]
		if m.regAt == nil {
			continue
		}
		if merged.regAt == nil || m.regAt.Before(*merged.regAt) {
			merged.RegistrationTime, merged.regAt = m.RegistrationTime, m.regAt
		}
	}
	if merged.RegistrationTime == "" {
		merged.RegistrationTime = firstNonEmpty(members, func(r *Record) string { return r.RegistrationTime })
	}
	return merged
}

// aggregateMinutes combines the known session times of a group. All-unknown
// aggregates to unknown, never to zero.
func aggregateMinutes(members []Record, mode Aggregation) *float64 {
	var sum, max float64
	known := false
	for i := range members {
		v := members[i].TimeInSession
		if v == nil {
			continue
		}
		if !known || *v > max {
			max = *v
		}
		sum += *v
		known = true
	}
	if !known {
		return nil
	}
	if mode == AggregateMax {
		return &max
	}
	return &sum
}

// mergeAttended: any Yes wins, then any No, then unknown.
func mergeAttended(members []Record) string {
	sawNo := false
	for i := range members {
		switch members[i].Attended {
		case "Yes":
			return "Yes"
		case "No":
			sawNo = true
		}
	}
	if sawNo {
		return "No"
	}
	return ""
}

// mergeIsGuest: any Yes wins; No only when every row agrees; else unknown.
func mergeIsGuest(members []Record) string {
	allNo := true
	for i := range members {
		switch members[i].IsGuest {
		case "Yes":
			return "Yes"
		case "No":
		default:
			allNo = false
		}
	}
	if allNo {
		return "No"
	}
	return ""
}

func firstNonEmpty(members []Record, get func(*Record) string) string {
	for i := range members {
		if v := get(&members[i]); v != "" {
			return v
		}
	}
	return ""
}
