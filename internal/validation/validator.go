package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// max_bytes bounds the encoded length, which max= (runes) does not.
	if err := v.RegisterValidation("max_bytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// Rule constrains one string field. Tag uses go-playground validator syntax.
// Messages overrides Message for individual tags of a combined Tag.
type Rule struct {
	Field    string
	Tag      string
	Message  string
	Messages map[string]string
	Optional bool
}

// Schema is the declared shape of one request payload.
type Schema struct {
	Rules []Rule
	// RequireAny demands that at least one of the declared fields is present.
	RequireAny        bool
	RequireAnyMessage string
}

// Error is returned for any payload that does not fit its schema. Fields maps
// field names to a human readable message.
type Error struct {
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

const defaultMessage = "validation failed"

// DecodeJSON reads a JSON object. Anything else is a validation error.
func DecodeJSON(r io.Reader) (map[string]any, error) {
	var raw map[string]any
	if r == nil {
		return nil, bodyError()
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil || raw == nil {
		return nil, bodyError()
	}
	return raw, nil
}

func bodyError() *Error {
	return &Error{
		Message: defaultMessage,
		Fields:  map[string]string{"body": "request body must be a JSON object"},
	}
}

// Validate checks raw against the schema and, only when everything passes,
// decodes the declared fields into out using mapstructure tags. Fields not
// declared in the schema are dropped.
func (s Schema) Validate(raw map[string]any, out any) error {
	fields := make(map[string]string)
	accepted := make(map[string]any, len(s.Rules))

	for _, rule := range s.Rules {
		value, present := raw[rule.Field]
		if !present {
			if !rule.Optional {
				fields[rule.Field] = rule.Field + " is required"
			}
			continue
		}

		str, ok := value.(string)
		if !ok {
			fields[rule.Field] = rule.Field + " must be a string"
			continue
		}

		if rule.Tag != "" {
			if err := validate.Var(str, rule.Tag); err != nil {
				fields[rule.Field] = ruleMessage(rule, err)
				continue
			}
		}
		accepted[rule.Field] = str
	}

	if len(fields) > 0 {
		return &Error{Message: defaultMessage, Fields: fields}
	}

	if s.RequireAny && len(accepted) == 0 {
		msg := s.RequireAnyMessage
		if msg == "" {
			msg = "at least one field must be provided"
		}
		return &Error{Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := mapstructure.Decode(accepted, out); err != nil {
		return fmt.Errorf("decode validated payload: %w", err)
	}
	return nil
}

func ruleMessage(rule Rule, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := rule.Messages[verrs[0].Tag()]; ok {
			return msg
		}
	}
	if rule.Message != "" {
		return rule.Message
	}
	return fmt.Sprintf("%s failed %q", rule.Field, rule.Tag)
}
