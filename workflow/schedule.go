package workflow

import (
	"fmt"
	"strings"
	"time"
)

var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseScheduleTime parses a user supplied schedule time. Layouts without
// a zone are read in loc (time.Local when nil).
func ParseScheduleTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrMissingScheduleTime
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q (use RFC3339 or YYYY-MM-DD HH:MM)", ErrInvalidScheduleTime, raw)
}
