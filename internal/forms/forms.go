// Package forms defines the two application variants: their fields, the
// validation schema derived from them, defaults, and the analytics-safe
// summary of a submission.
package forms

import (
	"fmt"
	"strings"

	"blockhost-portal/internal/common/validation"
)

type FormType string

const (
	Standard FormType = "standard"
	Founding FormType = "founding"
)

func ParseFormType(s string) (FormType, error) {
	switch FormType(s) {
	case Standard, Founding:
		return FormType(s), nil
	default:
		return "", fmt.Errorf("unknown form type %q", s)
	}
}

func (f FormType) Valid() bool {
	return f == Standard || f == Founding
}

// DraftKey is the storage key holding this variant's in-progress draft.
func (f FormType) DraftKey() string {
	if f == Founding {
		return "blockhost-founding-draft"
	}
	return "blockhost-application-draft"
}

// Name identifies the form in analytics events.
func (f FormType) Name() string {
	if f == Founding {
		return "founding_application"
	}
	return "standard_application"
}

func (f FormType) Title() string {
	if f == Founding {
		return "Founding Creator Application"
	}
	return "Creator Application"
}

type Values map[string]interface{}

// String returns a trimmed string field or "".
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return strings.TrimSpace(s)
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Fields returns the ordered field list for f.
func Fields(f FormType) []Field {
	if f == Founding {
		return foundingFields
	}
	return standardFields
}

func Lookup(f FormType, name string) (Field, bool) {
	for _, field := range Fields(f) {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Schema builds the declarative validation schema for f.
func Schema(f FormType) validation.JSONSchema {
	schema := validation.JSONSchema{
		Type:                 "object",
		Properties:           make(map[string]validation.Property),
		AdditionalProperties: true, // old drafts may carry retired fields
	}
	for _, field := range Fields(f) {
		schema.Properties[field.Name] = field.property()
		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}
	return schema
}

// Validate returns per-field messages, or nil when values are acceptable.
func Validate(f FormType, values Values) map[string]string {
	result := validation.ValidateInput(values, Schema(f))
	if result.Valid {
		return nil
	}
	return result.FieldMessages()
}

// Defaults returns the empty form: "" for text and choices, false for checkboxes.
func Defaults(f FormType) Values {
	out := make(Values, len(Fields(f)))
	for _, field := range Fields(f) {
		if field.Kind == KindCheckbox {
			out[field.Name] = false
		} else {
			out[field.Name] = ""
		}
	}
	return out
}

// Summary keeps only categorical answers, keyed in snake_case, plus the form
// name. Free text and contact details never appear in it.
func Summary(f FormType, values Values) map[string]interface{} {
	out := map[string]interface{}{"form_name": f.Name()}
	for _, field := range Fields(f) {
		if field.Kind != KindChoice || field.AnalyticsKey == "" {
			continue
		}
		if v := values.String(field.Name); v != "" {
			out[field.AnalyticsKey] = v
		}
	}
	return out
}
