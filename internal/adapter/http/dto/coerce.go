package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// FlexString accepts any JSON scalar and keeps its text form.
// Strings are taken as-is, numbers and booleans are formatted, everything else is "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = FlexString(t)
	case float64:
		*s = FlexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = FlexString(strconv.FormatBool(t))
	default:
		*s = ""
	}
	return nil
}

// StrictTrue is true only when the JSON value is the literal true.
type StrictTrue bool

func (b *StrictTrue) UnmarshalJSON(data []byte) error {
	*b = StrictTrue(bytes.Equal(bytes.TrimSpace(data), []byte("true")))
	return nil
}

// Amount is a non-negative finite number. Numeric strings are accepted;
// negative, non-finite or non-numeric input becomes 0.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	*a = Amount(f)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// millisThreshold separates unix seconds from unix milliseconds.
const millisThreshold = 1e11

// maxUnixMillis is the largest instant a JavaScript Date can represent.
const maxUnixMillis = 8.64e15

// Timestamp is a processor timestamp. Unparsable input leaves it zero.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}

	switch t := v.(type) {
	case string:
		ts.Time = parseTimestamp(strings.TrimSpace(t))
	case float64:
		ts.Time = fromUnix(t)
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inYearRange(t.UTC())
		}
	}
	return time.Time{}
}

func fromUnix(f float64) time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > maxUnixMillis {
		return time.Time{}
	}
	if f >= millisThreshold {
		return inYearRange(time.UnixMilli(int64(f)).UTC())
	}
	return inYearRange(time.Unix(int64(f), 0).UTC())
}

// inYearRange zeroes instants that stores and JSON encoders cannot hold.
func inYearRange(t time.Time) time.Time {
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}
	}
	return t
}
