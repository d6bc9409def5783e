package pipeline

import (
	"fmt"
	"strings"
)

// SchemaMismatchError is the fatal outcome of Gate A (raw header check) or
// Gate B (output header check). The run produces no dataset.
type SchemaMismatchError struct {
	Gate       string
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected columns: %s", strings.Join(e.Unexpected, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "column order mismatch")
	}
	return fmt.Sprintf("gate %s schema mismatch: %s", e.Gate, strings.Join(parts, "; "))
}

// DatetimeQualityError is the fatal outcome of Gate D: too few timestamp
// inputs parsed for the dataset to be trusted.
type DatetimeQualityError struct {
	Ratio     float64
	Threshold float64
	Failures  int
}

func (e *DatetimeQualityError) Error() string {
	return fmt.Sprintf("gate D datetime quality %.4f below threshold %.4f (%d unparseable)",
		e.Ratio, e.Threshold, e.Failures)
}
