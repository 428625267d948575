package jsonapifu

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ccbrown/jsonapi-fu/types"
)

// AttributeKind selects the coercion applied to an attribute's raw document value. The set of
// kinds is closed; schema construction rejects anything else.
type AttributeKind int

const (
	StringAttribute AttributeKind = iota
	BooleanAttribute
	DateAttribute
	DateTimeAttribute
	DecimalAttribute
	FloatAttribute
	IntegerAttribute
	UUIDv4Attribute
)

// AttributeDefinition declares one attribute accepted under /data/attributes.
type AttributeDefinition struct {
	// The canonical domain field name, used as the wire param key in sanitized output.
	Name string

	// As overrides the JSON attribute key the value is read from. Defaults to Name.
	As string

	// Format selects the attribute's coercion. The zero value is StringAttribute.
	Format AttributeKind
}

// Attribute is a compiled attribute declaration.
type Attribute struct {
	name string
	as   string
	kind AttributeKind
}

func newAttribute(def AttributeDefinition) (*Attribute, error) {
	if def.Name == "" {
		return nil, errors.New("attribute definitions must have a name")
	} else if err := ValidateMemberName(def.Name); err != nil {
		return nil, err
	}
	as := def.As
	if as == "" {
		as = def.Name
	} else if err := ValidateMemberName(as); err != nil {
		return nil, err
	}
	if _, ok := attributeCoders[def.Format]; !ok {
		return nil, errors.Errorf("unknown attribute format: %v", def.Format)
	}
	return &Attribute{
		name: def.Name,
		as:   as,
		kind: def.Format,
	}, nil
}

// ParamName returns the key the attribute's coerced value is emitted under.
func (a *Attribute) ParamName() string {
	return a.name
}

// Decode coerces a raw document value. A nil input is always nil output: every kind is nullable.
func (a *Attribute) Decode(value any) (any, types.Error, bool) {
	if value == nil {
		return nil, types.Error{}, true
	}
	decoded, err := attributeCoders[a.kind](value)
	if err != nil {
		return nil, newPayload(CodeInvalidAttribute, err.Error(), "/data/attributes/"+a.as), false
	}
	return decoded, types.Error{}, true
}

var attributeCoders = map[AttributeKind]func(value any) (any, error){
	StringAttribute:   decodeStringAttribute,
	BooleanAttribute:  decodeBooleanAttribute,
	DateAttribute:     decodeDateAttribute,
	DateTimeAttribute: decodeDateTimeAttribute,
	DecimalAttribute:  decodeDecimalAttribute,
	FloatAttribute:    decodeFloatAttribute,
	IntegerAttribute:  decodeIntegerAttribute,
	UUIDv4Attribute:   decodeUUIDv4Attribute,
}

func decodeStringAttribute(value any) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("value should be a string or null")
}

func decodeBooleanAttribute(value any) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("value should only be boolean true, false, or null")
}

const dateAttributeFormat = "2006-01-02"

func decodeDateAttribute(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("value should be a YYYY-MM-DD date string or null")
	}
	t, err := time.Parse(dateAttributeFormat, s)
	if err != nil {
		return nil, fmt.Errorf("value should be a YYYY-MM-DD date string: %q", s)
	}
	return t, nil
}

func decodeDateTimeAttribute(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("value should be an ISO 8601 datetime string or null")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("value should be an ISO 8601 datetime string: %q", s)
	}
	// Offsets are normalized so equivalent instants compare equal.
	return t.UTC(), nil
}

var decimalAttributePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

func decodeDecimalAttribute(value any) (any, error) {
	s, ok := numericString(value)
	if !ok || !decimalAttributePattern.MatchString(s) {
		return nil, fmt.Errorf("value should be a decimal number or null")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("value should be a decimal number: %q", s)
	}
	return d, nil
}

func decodeFloatAttribute(value any) (any, error) {
	s, ok := numericString(value)
	if !ok {
		return nil, fmt.Errorf("value should be a floating point number or null")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("value should be a floating point number: %q", s)
	}
	return f, nil
}

func decodeIntegerAttribute(value any) (any, error) {
	s, ok := numericString(value)
	if !ok {
		return nil, fmt.Errorf("value should be an integer or null")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("value should be an integer without a fractional part: %q", s)
	}
	return n, nil
}

func decodeUUIDv4Attribute(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("value should be an RFC 4122 version 4 UUID string or null")
	}
	u, err := uuid.Parse(s)
	if err != nil || u.Version() != 4 || u.Variant() != uuid.RFC4122 || u.String() != s {
		return nil, fmt.Errorf("value should be an RFC 4122 version 4 UUID: %q", s)
	}
	return s, nil
}

// numericString renders number-ish inputs the way they appeared on the wire. Numbers arriving via
// SanitizeDocument are json.Number; maps built in code may carry native Go numerics.
func numericString(value any) (string, bool) {
	switch value := value.(type) {
	case string:
		return value, true
	case json.Number:
		return value.String(), true
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1e15 {
			return strconv.FormatInt(int64(value), 10), true
		}
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	default:
		return "", false
	}
}
