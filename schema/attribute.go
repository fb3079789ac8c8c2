package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Cast identifies the Go representation an attribute value is coerced into
// when scanned from the database.
type Cast string

// Built-in casts.
const (
	String Cast = "string"
	Int    Cast = "int"
	Float  Cast = "float"
	Bool   Cast = "bool"
	Time   Cast = "time"
	UUID   Cast = "uuid"
	JSON   Cast = "json"
	Bytes  Cast = "bytes"
)

// Attribute describes a single declared attribute of a record type.
type Attribute struct {
	// Name is the attribute name in lowerCamel form, e.g. "countryId".
	Name string
	// Column is the database column backing the attribute.
	Column string
	// Cast controls scan-time coercion of the column value.
	Cast Cast
}

// AttrOption customizes an attribute at declaration time.
type AttrOption func(*Attribute)

// WithColumn overrides the conventional column name of an attribute.
func WithColumn(column string) AttrOption {
	return func(a *Attribute) { a.Column = column }
}

const timeLayout = "2006-01-02 15:04:05"

// CastValue coerces a raw driver value into the representation of the given
// cast. A nil value stays nil regardless of the cast.
func CastValue(c Cast, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c {
	case String:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case Int:
		switch v := v.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case []byte:
			return strconv.ParseInt(string(v), 10, 64)
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
	case Float:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case Bool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case []byte:
			return strconv.ParseBool(string(v))
		case string:
			return strconv.ParseBool(v)
		}
	case Time:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case []byte:
			return parseTime(string(v))
		case string:
			return parseTime(v)
		}
	case UUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
	case JSON:
		var out any
		switch v := v.(type) {
		case []byte:
			if err := json.Unmarshal(v, &out); err != nil {
				return nil, err
			}
			return out, nil
		case string:
			if err := json.Unmarshal([]byte(v), &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	case Bytes:
		switch v := v.(type) {
		case []byte:
			out := make([]byte, len(v))
			copy(out, v)
			return out, nil
		case string:
			return []byte(v), nil
		}
	default:
		// Unknown casts pass the driver value through untouched.
		return v, nil
	}
	return nil, fmt.Errorf("rivet: cannot cast %T to %s", v, c)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(timeLayout, s)
}
