package extract

import (
	"regexp"
	"strconv"
	"time"
)

// datePattern matches 2024/06/04, 2024-6-4, 2024.06.04 and 2024年6月4日.
var datePattern = regexp.MustCompile(`(\d{4})\s*[/\-.年]\s*(\d{1,2})\s*[/\-.月]\s*(\d{1,2})\s*日?`)

// ParseDate returns the first valid calendar date found in text as midnight in loc.
// Impossible dates like 2024/02/30 are skipped.
func ParseDate(text string, loc *time.Location) (time.Time, bool) {
	for _, groups := range datePattern.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		month, err := strconv.Atoi(groups[2])
		if err != nil {
			continue
		}
		day, err := strconv.Atoi(groups[3])
		if err != nil {
			continue
		}

		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		// time.Date normalizes overflowing values, a mismatch means the date did not exist
		if date.Year() != year || int(date.Month()) != month || date.Day() != day {
			continue
		}
		return date, true
	}
	return time.Time{}, false
}

// IsDateShaped reports whether text contains something formatted like a date,
// whether or not it is a valid one.
func IsDateShaped(text string) bool {
	return datePattern.MatchString(text)
}
