package core

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var jsonNull = []byte("null")

// Date is a nullable calendar date ("2006-01-02" on the wire, DATE in the database).
type Date struct {
	Time  time.Time
	Valid bool
}

func DateFrom(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateFrom(t), nil
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return jsonNull, nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*d = Date{}
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		// accept full timestamps too
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	}
	*d = DateFrom(t)
	return nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateFrom(v)
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

// TimeOfDay is a nullable wall-clock time ("15:04:05" or "15:04" on the wire, TIME in the database).
type TimeOfDay struct {
	Time  time.Time
	Valid bool
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Time: t, Valid: true}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time %q", s)
}

func (t TimeOfDay) String() string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(TimeLayout)
}

// Before reports whether t is strictly earlier in the day than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.String() < o.String()
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return jsonNull, nil
	}
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*t = TimeOfDay{}
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *TimeOfDay) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = TimeOfDay{}
	case time.Time:
		*t = TimeOfDay{Time: time.Date(0, 1, 1, v.Hour(), v.Minute(), v.Second(), 0, time.UTC), Valid: true}
	case []byte:
		return t.UnmarshalJSON(v)
	case string:
		return t.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", value)
	}
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.String(), nil
}

// JSONValue encodes v for a JSONB column.
// lib/pq sends []byte parameters in binary format, which jsonb rejects, so the text is passed as a string.
func JSONValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ScanJSON decodes a JSON/JSONB column into dest. NULL leaves dest untouched.
func ScanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
}
