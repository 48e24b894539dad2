package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the due date format shown and stored in the cache.
const DateLayout = "2006-01-02"

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses "today", "tomorrow", "yesterday", "+7d", "-3d", "+2w", "+1m"
// relative to now. Returns ok=false if the string is not a relative form.
func parseRelativeDate(dateStr string, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(dateStr)
	switch lower {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return time.Time{}, false
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, false
	}
	if matches[1] == "-" {
		num = -num
	}

	switch matches[3] {
	case "w":
		return today.AddDate(0, 0, num*7), true
	case "m":
		return today.AddDate(0, num, 0), true
	default:
		return today.AddDate(0, 0, num), true
	}
}

// ParseDueDate normalises a due date input to YYYY-MM-DD.
// Empty (or blank) input means no due date and returns "".
func ParseDueDate(dateStr string) (string, error) {
	return parseDueDateAt(dateStr, time.Now())
}

func parseDueDateAt(dateStr string, now time.Time) (string, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return "", nil
	}

	if t, ok := parseRelativeDate(dateStr, now); ok {
		return t.Format(DateLayout), nil
	}

	parsed, err := time.ParseInLocation(DateLayout, dateStr, time.Local)
	if err != nil {
		return "", ErrInvalidDate(dateStr)
	}
	return parsed.Format(DateLayout), nil
}

// NormalizeText trims the task text and rejects blank input.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText()
	}
	return text, nil
}

// ParseTaskID parses a positive integer task id.
func ParseTaskID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ErrInvalidID(raw)
	}
	return id, nil
}
