package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// JSONSchema describes a flat record of form fields.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

// Property is one field rule. String lengths are counted in runes after trimming.
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Format      string      `json:"format,omitempty"` // "email" or "uri"
	Pattern     *string     `json:"pattern,omitempty"`
	MinLength   *int        `json:"minLength,omitempty"`
	MaxLength   *int        `json:"maxLength,omitempty"`
	// MustBeTrue marks agreement checkboxes that only validate when checked.
	MustBeTrue bool `json:"mustBeTrue,omitempty"`
	// Message overrides the generic message for any failure on this field.
	Message string `json:"message,omitempty"`
}

const (
	FormatEmail = "email"
	FormatURI   = "uri"
)

const (
	CodeRequired     = "REQUIRED_FIELD_MISSING"
	CodeInvalidType  = "INVALID_TYPE"
	CodeMinLength    = "MIN_LENGTH_VIOLATION"
	CodeMaxLength    = "MAX_LENGTH_VIOLATION"
	CodeInvalidEnum  = "INVALID_ENUM_VALUE"
	CodeInvalidEmail = "INVALID_EMAIL"
	CodeInvalidURL   = "INVALID_URL"
	CodePattern      = "PATTERN_MISMATCH"
	CodeMustBeTrue   = "MUST_BE_TRUE"
	CodeExtraField   = "EXTRA_FIELD"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s/$.?#][^\s]*\.[^\s]+$`)
)

// ValidateInput checks input against schema and reports at most one error per field.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	errs := []ValidationError{}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	for _, name := range sortedKeys(schema.Properties) {
		prop := schema.Properties[name]
		value, present := input[name]
		if fieldErr := validateField(name, value, present, required[name], prop); fieldErr != nil {
			errs = append(errs, *fieldErr)
		}
	}

	// Required names without a property rule still need a value.
	for _, name := range schema.Required {
		if _, described := schema.Properties[name]; described {
			continue
		}
		if value, ok := input[name]; !ok || isEmpty(value) {
			errs = append(errs, ValidationError{Field: name, Message: "This field is required", Code: CodeRequired})
		}
	}

	if !schema.AdditionalProperties {
		for _, name := range sortedKeys(input) {
			if _, ok := schema.Properties[name]; !ok {
				errs = append(errs, ValidationError{Field: name, Message: "field not allowed in schema", Code: CodeExtraField})
			}
		}
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateField(name string, value interface{}, present, required bool, prop Property) *ValidationError {
	fail := func(code, msg string) *ValidationError {
		if prop.Message != "" {
			msg = prop.Message
		}
		return &ValidationError{Field: name, Message: msg, Code: code}
	}

	if prop.MustBeTrue {
		b, ok := value.(bool)
		if !present || !ok || !b {
			return fail(CodeMustBeTrue, "You must agree to continue")
		}
		return nil
	}

	if !present || isEmpty(value) {
		if required {
			return fail(CodeRequired, "This field is required")
		}
		return nil
	}

	if err := validateType(value, prop.Type); err != nil {
		return fail(CodeInvalidType, err.Error())
	}

	strVal, ok := value.(string)
	if !ok {
		return nil
	}
	strVal = strings.TrimSpace(strVal)
	length := utf8.RuneCountInString(strVal)

	if prop.MinLength != nil && length < *prop.MinLength {
		return fail(CodeMinLength, fmt.Sprintf("Must be at least %d characters", *prop.MinLength))
	}
	if prop.MaxLength != nil && length > *prop.MaxLength {
		return fail(CodeMaxLength, fmt.Sprintf("Must be at most %d characters", *prop.MaxLength))
	}

	switch prop.Format {
	case FormatEmail:
		if !ValidateEmail(strVal) {
			return fail(CodeInvalidEmail, "Please enter a valid email address")
		}
	case FormatURI:
		if !ValidateURL(strVal) {
			return fail(CodeInvalidURL, "Please enter a valid URL")
		}
	}

	if prop.Pattern != nil {
		matched, err := regexp.MatchString(*prop.Pattern, strVal)
		if err != nil || !matched {
			return fail(CodePattern, fmt.Sprintf("value must match pattern %s", *prop.Pattern))
		}
	}

	if len(prop.Enum) > 0 && !contains(prop.Enum, strVal) {
		return fail(CodeInvalidEnum, "Please select an option")
	}

	return nil
}

func validateType(value interface{}, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	}
	return nil
}

// isEmpty treats nil, blank strings and false as "no value".
func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	default:
		return false
	}
}

// IsEmptyValue exposes the emptiness rule used for required checks.
func IsEmptyValue(value interface{}) bool {
	return isEmpty(value)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSchemaFromJSON parses a schema from its JSON form.
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns "field: message" strings, suitable for logs.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// FieldMessages maps each failing field to its message.
func (vr *ValidationResult) FieldMessages() map[string]string {
	out := make(map[string]string, len(vr.Errors))
	for _, err := range vr.Errors {
		if _, seen := out[err.Field]; !seen {
			out[err.Field] = err.Message
		}
	}
	return out
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}

func IntPtr(i int) *int {
	return &i
}
