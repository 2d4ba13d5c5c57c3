package config

import (
	"regexp"
	"time"
)

var dateRe = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2}(T\d{2}(:\d{2}(:\d{2})?)?)?)?)?$`)

var dateLayouts = map[int]string{
	4:  "2006",
	7:  "2006-01",
	10: "2006-01-02",
	13: "2006-01-02T15",
	16: "2006-01-02T15:04",
	19: "2006-01-02T15:04:05",
}

// ValidDate reports whether s is an ISO date truncated to year, month, day,
// hour, minute or second.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayouts[len(s)], s)
	return err == nil
}
