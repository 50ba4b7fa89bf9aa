package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DateLayout is the calendar date format accepted in query parameters
const DateLayout = "2006-01-02"

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryDate extracts an optional YYYY-MM-DD query parameter. A missing
// or empty parameter yields nil. Dates are interpreted as midnight UTC.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	val, err := time.ParseInLocation(DateLayout, str, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date for query param %s: %q (want YYYY-MM-DD)", key, str)
	}
	return &val, nil
}

// ParseDateRange reads the from and to query parameters and rejects ranges
// that end before they start
func ParseDateRange(r *http.Request) (from, to *time.Time, err error) {
	if from, err = ParseQueryDate(r, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = ParseQueryDate(r, "to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("from (%s) must not be after to (%s)",
			from.Format(DateLayout), to.Format(DateLayout))
	}
	return from, to, nil
}

// ParseDateRangeOrError parses the date range and writes a 400 on failure
func ParseDateRangeOrError(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	from, to, err := ParseDateRange(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return nil, nil, false
	}
	return from, to, true
}
