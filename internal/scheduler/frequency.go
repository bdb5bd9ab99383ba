package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrFormat marks a malformed frequency.
var ErrFormat = errors.New("invalid frequency")

// Unit is a frequency unit suffix.
type Unit string

const (
	Second Unit = "s"
	Minute Unit = "m"
	Hour   Unit = "h"
	Day    Unit = "d"
	Week   Unit = "w"
	Month  Unit = "M"
)

var frequencyPattern = regexp.MustCompile(`^(\d{1,3})([smhdwM])$`)

var periods = map[Unit]string{
	Second: "second",
	Minute: "minute",
	Hour:   "hour",
	Day:    "day",
	Week:   "week",
	Month:  "month",
}

// ParseFrequency splits a frequency such as "30m" into its count and unit.
// The whole string must match one to three digits followed by a unit.
func ParseFrequency(spec string) (int, Unit, error) {
	match := frequencyPattern.FindStringSubmatch(spec)
	if match == nil {
		return 0, "", fmt.Errorf("%w: %q: expected <1-3 digits><s|m|h|d|w|M>", ErrFormat, spec)
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %w", ErrFormat, spec, err)
	}
	return count, Unit(match[2]), nil
}

// CronKwarg returns the calendar field and step expression equivalent to
// "every count units", e.g. (30, Minute) is ("minute", "*/30").
func CronKwarg(count int, unit Unit) (string, string) {
	return periods[unit], fmt.Sprintf("*/%d", count)
}

// CronSpec translates a frequency into a six-field cron expression with
// seconds. Fields below the stepped one are pinned to their minimum, so
// (2, Hour) fires at second 0, minute 0 of every second hour. Cron has no
// week field; weeks use a fixed @every interval.
func CronSpec(count int, unit Unit) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("%w: count must be positive, got %d", ErrFormat, count)
	}
	step := fmt.Sprintf("*/%d", count)
	switch unit {
	case Second:
		return step + " * * * * *", nil
	case Minute:
		return "0 " + step + " * * * *", nil
	case Hour:
		return "0 0 " + step + " * * *", nil
	case Day:
		return "0 0 0 " + step + " * *", nil
	case Month:
		return "0 0 0 1 " + step + " *", nil
	case Week:
		return fmt.Sprintf("@every %dh", count*7*24), nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrFormat, unit)
	}
}

// FrequencySpec parses a frequency and returns its cron expression.
func FrequencySpec(frequency string) (string, error) {
	count, unit, err := ParseFrequency(frequency)
	if err != nil {
		return "", err
	}
	return CronSpec(count, unit)
}
