package model

import "time"

// Time wraps time.Time to apply the wire format convention inherited from
// the original implementation: an ISO-8601 UTC instant with its "+00"
// offset prefix trimmed off, so "2024-01-02T03:04:05+00:00" is written as
// "2024-01-02T03:04:05:00" the way existing consumers expect. Parsing
// remains permissive and accepts a normal RFC3339 timestamp too.
type Time time.Time

// Now returns the current instant in UTC.
func Now() Time {
	return Time(time.Now().UTC())
}

// Std returns the underlying time.Time.
func (t Time) Std() time.Time {
	return time.Time(t)
}

func (t Time) String() string {
	return formatTrimmed(time.Time(t))
}

// MarshalJSON implements json.Marshaler using the trimmed ISO-8601 form.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + formatTrimmed(time.Time(t)) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting either the trimmed
// form this package emits or a standard RFC3339 timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return nil
	}
	s := string(data[1 : len(data)-1])
	parsed, err := parsePermissive(s)
	if err != nil {
		return err
	}
	*t = Time(parsed)
	return nil
}

// formatTrimmed reproduces the "+00" prefix trim rule from the original
// implementation's time_format module: format as ISO-8601, then strip the
// leading "+00" from the trailing "+00:00" UTC offset.
func formatTrimmed(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.999999999-07:00")
	const prefix = "+00"
	if idx := len(s) - len("+00:00"); idx >= 0 && s[idx:] == "+00:00" {
		return s[:idx] + s[idx+len(prefix):]
	}
	return s
}

// parsePermissive accepts the trimmed form produced by formatTrimmed, a
// plain RFC3339 timestamp, or RFC3339 with nanoseconds.
func parsePermissive(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999:00",
		"2006-01-02T15:04:05:00",
	}
	var lastErr error
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
