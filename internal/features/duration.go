package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	intervalPrefix = "interval"
	hoursPerDay    = 24
	daysPerWeek    = 7
)

var (
	errEmptyDuration    = errors.New("empty duration")
	errNegativeDuration = errors.New("negative duration")
	errUnknownUnit      = errors.New("unknown duration unit")
)

var durationUnits = map[string]time.Duration{
	"ms":           time.Millisecond,
	"millisecond":  time.Millisecond,
	"milliseconds": time.Millisecond,
	"s":            time.Second,
	"sec":          time.Second,
	"second":       time.Second,
	"seconds":      time.Second,
	"m":            time.Minute,
	"min":          time.Minute,
	"minute":       time.Minute,
	"minutes":      time.Minute,
	"h":            time.Hour,
	"hour":         time.Hour,
	"hours":        time.Hour,
	"d":            hoursPerDay * time.Hour,
	"day":          hoursPerDay * time.Hour,
	"days":         hoursPerDay * time.Hour,
	"week":         daysPerWeek * hoursPerDay * time.Hour,
	"weeks":        daysPerWeek * hoursPerDay * time.Hour,
}

// parseRetention parses a table-property duration. Accepted forms: a bare number of hours
// ("168"), number/unit pairs optionally prefixed by "interval" ("interval 7 days",
// "1 week 2 days", "30 minutes"), and Go durations ("168h").
func parseRetention(raw string) (time.Duration, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return 0, errEmptyDuration
	}

	if hours, err := strconv.ParseFloat(text, 64); err == nil {
		return checkNonNegative(time.Duration(hours * float64(time.Hour)))
	}

	fields := strings.Fields(text)
	if fields[0] == intervalPrefix {
		fields = fields[1:]
	}

	if len(fields) > 0 && len(fields)%2 == 0 {
		total, pairsErr := parsePairs(fields)
		if pairsErr == nil {
			return checkNonNegative(total)
		}
	}

	parsed, err := time.ParseDuration(strings.Join(fields, ""))
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}

	return checkNonNegative(parsed)
}

func parsePairs(fields []string) (time.Duration, error) {
	var total time.Duration

	for i := 0; i < len(fields); i += 2 {
		amount, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", fields[i], err)
		}

		unit, ok := durationUnits[fields[i+1]]
		if !ok {
			return 0, fmt.Errorf("%w: %q", errUnknownUnit, fields[i+1])
		}

		total += time.Duration(amount * float64(unit))
	}

	return total, nil
}

func checkNonNegative(d time.Duration) (time.Duration, error) {
	if d < 0 {
		return 0, errNegativeDuration
	}

	return d, nil
}
