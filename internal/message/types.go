package message

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Keys of a reading message on the wire.
const (
	KeySensorID  = "sensor_id"
	KeyTimestamp = "ts"
	KeyValue     = "val"
)

// DynamicMessage is a decoded JSON object with arbitrary keys.
type DynamicMessage map[string]interface{}

// Reading is one sensor reading taken off the ingestion topic.
type Reading struct {
	SensorID string    `json:"sensor_id"`
	Time     time.Time `json:"ts"`
	Value    float64   `json:"val"`
}

// Reading converts the message into a Reading. A null value becomes NaN, which
// downstream treats as a gap.
func (dm DynamicMessage) Reading() (Reading, error) {
	id, ok := dm.GetString(KeySensorID)
	if !ok || id == "" {
		return Reading{}, ErrMissingSensorID
	}
	ts, ok := dm.GetTime(KeyTimestamp)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrBadTimestamp, dm.GetFieldSnippet(KeyTimestamp, 40))
	}
	r := Reading{SensorID: id, Time: *ts, Value: math.NaN()}
	if !dm.HasNonNull(KeyValue) {
		return r, nil
	}
	v, ok := dm.GetFloat64(KeyValue)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrBadValue, dm.GetFieldSnippet(KeyValue, 40))
	}
	r.Value = *v
	return r, nil
}

// GetFloat64 returns the numeric value stored under key. Numeric strings are
// accepted since some gateways quote every field.
func (dm DynamicMessage) GetFloat64(key string) (*float64, bool) {
	val, exists := dm[key]
	if !exists || val == nil {
		return nil, false
	}

	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}
	return &f, true
}

// GetString returns the value under key as a string. JSON numbers are
// formatted without a fractional part when they are whole.
func (dm DynamicMessage) GetString(key string) (string, bool) {
	switch v := dm[key].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// HasNonNull checks if a key exists and its value is not explicitly null.
func (dm DynamicMessage) HasNonNull(key string) bool {
	val, exists := dm[key]
	return exists && val != nil
}

// GetTime parses the timestamp under key. Strings are tried against the
// common layouts; numbers are Unix seconds (fractional allowed).
func (dm DynamicMessage) GetTime(key string) (*time.Time, bool) {
	val, exists := dm[key]
	if !exists || val == nil {
		return nil, false
	}

	switch v := val.(type) {
	case float64:
		sec, frac := math.Modf(v)
		t := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
		return &t, true
	case string:
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return &t, true
			}
		}
	}
	return nil, false
}

// GetFieldSnippet returns a truncated string form of a field for logging.
func (dm DynamicMessage) GetFieldSnippet(fieldName string, maxLength int) string {
	value, exists := dm[fieldName]
	if !exists {
		return "<missing>"
	}
	if maxLength <= 0 {
		return "..."
	}

	strValue := fmt.Sprintf("%v", value)
	if len(strValue) > maxLength {
		return strValue[:maxLength] + "..."
	}
	return strValue
}
