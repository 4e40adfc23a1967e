// Package validation implements declarative request validation. A schema is
// an ordered list of per-field rules; Validate returns one message per
// violated rule, in schema-declaration order, and callers join them with
// "; " into a single response message.
package validation

import (
	"fmt"
	"math"
	"strings"
)

// forbiddenSentinel is the placeholder value some upstream form tooling
// submits for unselected fields. It is never valid data.
const forbiddenSentinel = "Other"

// Kind constrains the JSON type of a field. KindAny skips the type check.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBool
	KindArray
	KindObject
)

// Rule describes the validation applied to one field. Rules are evaluated
// in order: presence, type, emptiness, sentinel, then the custom check.
// The first violated rule produces the field's message; later rules for the
// same field are skipped so a missing field yields exactly one error.
type Rule struct {
	Field       string
	Required    bool
	Kind        Kind
	NonEmpty    bool
	ForbidOther bool
	// Check runs after the structural rules pass. It returns a complete
	// message, or "" when the value is acceptable.
	Check func(value any) string
}

// Validate applies the schema to a decoded JSON object and returns the
// ordered list of violation messages.
func Validate(body map[string]any, schema []Rule) []string {
	var errs []string
	for _, rule := range schema {
		if msg := applyRule(body, rule); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

// JoinErrors flattens field errors into the single response message form.
func JoinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}

func applyRule(body map[string]any, rule Rule) string {
	value, present := body[rule.Field]
	if !present || value == nil {
		if rule.Required {
			return fmt.Sprintf("%s is required and cannot be null or undefined", rule.Field)
		}
		return ""
	}

	if msg := checkKind(rule.Field, value, rule.Kind); msg != "" {
		return msg
	}

	if s, ok := value.(string); ok {
		if rule.NonEmpty && s == "" {
			return fmt.Sprintf("%s cannot be empty", rule.Field)
		}
		if rule.ForbidOther && s == forbiddenSentinel {
			return fmt.Sprintf("%s cannot be '%s'", rule.Field, forbiddenSentinel)
		}
	}

	if rule.Check != nil {
		return rule.Check(value)
	}
	return ""
}

func checkKind(field string, value any, kind Kind) string {
	switch kind {
	case KindAny:
		return ""
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("%s must be a string", field)
		}
	case KindNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("%s must be a number", field)
		}
	case KindInteger:
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Sprintf("%s must be an integer", field)
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean", field)
		}
	case KindArray:
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("%s must be an array", field)
		}
	case KindObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("%s must be an object", field)
		}
	}
	return ""
}
