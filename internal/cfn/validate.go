package cfn

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidationResult reports the outcome of checking caller-supplied values
// against a template's parameter schema. Errors block deployment; warnings
// do not. Message shapes are stable and the parameter name is always the
// first token, so callers can locate the offending field programmatically.
type ValidationResult struct {
	Success  bool     `json:"success"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ValidateAgainstSchema checks a value map against an extracted schema.
// Never mutates values and never contacts the provider. Checks run in
// schema declaration order; constraint checks short-circuit per key on the
// first failing rule, so each offending key yields exactly one error.
func ValidateAgainstSchema(schema *Schema, values map[string]string) *ValidationResult {
	result := &ValidationResult{
		Success:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	// Required-presence: every schema entry without a default must be
	// supplied.
	for _, name := range schema.Required {
		if _, ok := values[name]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: missing required parameter", name))
		}
	}

	// Unknown-key: unknown keys warn but never block, since providers
	// commonly accept pass-through metadata.
	for _, name := range sortedValueKeys(values) {
		if _, ok := schema.Parameters[name]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: unknown parameter", name))
		}
	}

	// Constraint checks for keys present in both schema and values.
	for _, name := range schema.Order {
		value, ok := values[name]
		if !ok {
			continue
		}
		spec := schema.Parameters[name]
		if msg := checkConstraints(&spec, value); msg != "" {
			result.Errors = append(result.Errors, msg)
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Message = "Parameters are valid"
	} else {
		result.Message = "Parameter validation failed"
	}
	return result
}

// checkConstraints applies the declared constraints to one value in fixed
// order (allowed values, then pattern, then length bounds, then numeric
// bounds) and returns the first violation, or "" if all pass.
func checkConstraints(spec *ParameterSpec, value string) string {
	if len(spec.AllowedValues) > 0 && !contains(spec.AllowedValues, value) {
		return fmt.Sprintf("%s: value not in allowed values (%s)",
			spec.Name, strings.Join(spec.AllowedValues, ", "))
	}

	if spec.AllowedPattern != "" {
		re, err := regexp.Compile(fullMatchPattern(spec.AllowedPattern))
		if err != nil {
			return fmt.Sprintf("%s: allowed pattern %q is not a valid regular expression",
				spec.Name, spec.AllowedPattern)
		}
		if !re.MatchString(value) {
			return fmt.Sprintf("%s: does not match allowed pattern %s",
				spec.Name, spec.AllowedPattern)
		}
	}

	if spec.MinLength != nil || spec.MaxLength != nil {
		if msg := checkLength(spec, value); msg != "" {
			return msg
		}
	}

	if spec.IsNumeric() && (spec.MinValue != nil || spec.MaxValue != nil) {
		if msg := checkNumericRange(spec, value); msg != "" {
			return msg
		}
	}

	return ""
}

// checkLength verifies string length bounds. Length is counted in
// characters, not bytes, so multibyte values measure as the user sees them.
func checkLength(spec *ParameterSpec, value string) string {
	n := utf8.RuneCountInString(value)
	if (spec.MinLength != nil && n < *spec.MinLength) ||
		(spec.MaxLength != nil && n > *spec.MaxLength) {
		return fmt.Sprintf("%s: length out of bounds [%s, %s]",
			spec.Name, boundInt(spec.MinLength), boundInt(spec.MaxLength))
	}
	return ""
}

// checkNumericRange verifies numeric bounds for Number-typed parameters.
// A value that does not parse as a number fails the range check, since the
// bounds cannot be satisfied by a non-number.
func checkNumericRange(spec *ParameterSpec, value string) string {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Sprintf("%s: value out of range [%s, %s]: not a number",
			spec.Name, boundFloat(spec.MinValue), boundFloat(spec.MaxValue))
	}
	if (spec.MinValue != nil && f < *spec.MinValue) ||
		(spec.MaxValue != nil && f > *spec.MaxValue) {
		return fmt.Sprintf("%s: value out of range [%s, %s]",
			spec.Name, boundFloat(spec.MinValue), boundFloat(spec.MaxValue))
	}
	return ""
}

// fullMatchPattern anchors a pattern so the whole value must match,
// mirroring CloudFormation's AllowedPattern semantics. The pattern is
// wrapped in a non-capturing group so top-level alternation stays scoped
// to the whole value.
func fullMatchPattern(pattern string) string {
	return "^(?:" + pattern + ")$"
}

// boundInt renders an optional integer bound for error messages.
func boundInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

// boundFloat renders an optional numeric bound for error messages.
func boundFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// contains reports whether list includes s.
func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// sortedValueKeys returns the supplied keys in a deterministic order so
// warning output is stable across runs.
func sortedValueKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
