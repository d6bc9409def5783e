package zoomexport

// Topic extracts the webinar metadata from the Topic section's first data
// row. Exports name the columns inconsistently across report types, so each
// field is resolved through its known aliases. A missing Topic section yields
// zero metadata rather than an error.
func (e *Export) Topic() TopicInfo {
	sec := e.Section(SectionTopic)
	if sec == nil || len(sec.Rows) == 0 {
		return TopicInfo{}
	}

	idx := columnIndex(sec.Columns)
	row := sec.Rows[0]

	return TopicInfo{
		WebinarID: pick(row, idx, "Webinar ID", "ID"),
		Title:     pick(row, idx, "Topic"),
		StartRaw:  pick(row, idx, "Actual Start Time", "Scheduled Time", "Scheduled Start Time"),
	}
}

// PrimaryName returns the display name on the first data row of the named
// section. Used for the Host Details / Panelist Details fallbacks when no
// conductor is mapped for the webinar.
func (e *Export) PrimaryName(section string) string {
	sec := e.Section(section)
	if sec == nil || len(sec.Rows) == 0 {
		return ""
	}
	idx := columnIndex(sec.Columns)
	return pick(sec.Rows[0], idx, "User Name (Original Name)", "User Name", "Name")
}

func columnIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}

func pick(row []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if i, ok := idx[name]; ok && i < len(row) && row[i] != "" {
			return row[i]
		}
	}
	return ""
}
