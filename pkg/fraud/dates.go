package fraud

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// pdfDate matches the PDF date string after the "D:" prefix and apostrophes are removed:
// YYYY[MM[DD[HH[mm[SS]]]]] followed by Z, Zhhmm, or a +/-h[h][:]mm offset.
var pdfDate = regexp.MustCompile(`^(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?(?:Z(?:(\d{2})(\d{2}))?|([+-])(\d{1,2}):?(\d{2})?)?$`)

// calendarLayouts are tried in order; day-first forms come before month-first ones.
var calendarLayouts = []string{
	"2/1/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2/1/2006 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"2-1-2006",
	"20060102",
	"2/1/2006 15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

var emptyDates = map[string]struct{}{"": {}, "0": {}, "D:": {}, "None": {}, "null": {}}

// Parse converts a PDF metadata date or a calendar date into a UTC timestamp.
// It reports false for empty or unparsable input.
func Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if _, empty := emptyDates[s]; empty {
		return time.Time{}, false
	}

	if t, ok := parsePDF(s); ok {
		return t, true
	}
	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parsePDF(s string) (time.Time, bool) {
	s = strings.TrimPrefix(s, "D:")
	s = strings.ReplaceAll(s, "'", "")
	m := pdfDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	if m[4] == "" && (m[7] != "" || m[9] != "") {
		// an offset without a time of day is a calendar date like 2024-01, not a PDF date
		return time.Time{}, false
	}

	part := func(i, def int) int {
		if m[i] == "" {
			return def
		}
		n, _ := strconv.Atoi(m[i])
		return n
	}
	// Omitted fields take their earliest value, as the PDF date format defines, so a
	// truncated date is anchored at the start of its period and never at the current date.
	year, month, day := part(1, 0), part(2, 1), part(3, 1)
	hour, minute, sec := part(4, 0), part(5, 0), part(6, 0)
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, false
	}

	offset := 0
	switch {
	case m[7] != "":
		offset = part(7, 0)*3600 + part(8, 0)*60
	case m[9] != "":
		offset = part(10, 0)*3600 + part(11, 0)*60
		if m[9] == "-" {
			offset = -offset
		}
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.FixedZone("", offset))
	if t.Day() != day {
		return time.Time{}, false
	}
	return t.UTC(), true
}
