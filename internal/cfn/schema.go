package cfn

import (
	"fmt"
	"strconv"
)

// ParameterSpec is the normalized declaration of one template parameter.
// Derived and read-only; its lifetime is one schema-extraction call.
type ParameterSpec struct {
	Name                  string
	Type                  string
	Description           string
	Default               any
	HasDefault            bool
	AllowedValues         []string
	AllowedPattern        string
	ConstraintDescription string
	MinLength             *int
	MaxLength             *int
	MinValue              *float64
	MaxValue              *float64
	NoEcho                bool
}

// Schema is the extracted parameter schema of one template.
type Schema struct {
	// Parameters maps parameter name to its normalized spec.
	Parameters map[string]ParameterSpec
	// Order preserves the template's parameter declaration order.
	Order []string
	// Required lists parameters declared without a default, in declaration
	// order.
	Required []string
}

// ExtractSchema converts a parsed template document into a parameter
// schema. It fails with a *SchemaError if the Parameters section is
// malformed: a non-mapping section, a non-mapping entry, or an entry with
// no declared Type. resourceType is used only for error context. Pure
// function of its input; no side effects.
func ExtractSchema(resourceType string, doc *TemplateDocument) (*Schema, error) {
	if doc.parametersMalformed != "" {
		return nil, &SchemaError{ResourceType: resourceType, Reason: doc.parametersMalformed}
	}

	schema := &Schema{
		Parameters: make(map[string]ParameterSpec, len(doc.Parameters)),
		Order:      make([]string, 0, len(doc.ParameterOrder)),
	}

	for _, name := range doc.ParameterOrder {
		fields := doc.Parameters[name]
		if fields == nil {
			return nil, &SchemaError{
				ResourceType: resourceType,
				Parameter:    name,
				Reason:       "declaration must be a mapping",
			}
		}

		spec, err := buildParameterSpec(resourceType, name, fields)
		if err != nil {
			return nil, err
		}

		schema.Parameters[name] = spec
		schema.Order = append(schema.Order, name)
		if !spec.HasDefault {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema, nil
}

// buildParameterSpec normalizes one parameter declaration.
func buildParameterSpec(resourceType, name string, fields map[string]any) (ParameterSpec, error) {
	typ, ok := fields["Type"].(string)
	if !ok || typ == "" {
		return ParameterSpec{}, &SchemaError{
			ResourceType: resourceType,
			Parameter:    name,
			Reason:       "missing declared Type",
		}
	}

	spec := ParameterSpec{
		Name: name,
		Type: typ,
	}
	if d, ok := fields["Description"].(string); ok {
		spec.Description = d
	}
	if def, ok := fields["Default"]; ok {
		spec.Default = def
		spec.HasDefault = true
	}
	if p, ok := fields["AllowedPattern"].(string); ok {
		spec.AllowedPattern = p
	}
	if cd, ok := fields["ConstraintDescription"].(string); ok {
		spec.ConstraintDescription = cd
	}
	if ne, ok := fields["NoEcho"].(bool); ok {
		spec.NoEcho = ne
	}

	if raw, ok := fields["AllowedValues"].([]any); ok {
		spec.AllowedValues = make([]string, 0, len(raw))
		for _, v := range raw {
			spec.AllowedValues = append(spec.AllowedValues, scalarToString(v))
		}
	}

	var err error
	if spec.MinLength, err = intField(resourceType, name, fields, "MinLength"); err != nil {
		return ParameterSpec{}, err
	}
	if spec.MaxLength, err = intField(resourceType, name, fields, "MaxLength"); err != nil {
		return ParameterSpec{}, err
	}
	if spec.MinValue, err = floatField(resourceType, name, fields, "MinValue"); err != nil {
		return ParameterSpec{}, err
	}
	if spec.MaxValue, err = floatField(resourceType, name, fields, "MaxValue"); err != nil {
		return ParameterSpec{}, err
	}

	return spec, nil
}

// IsNumeric reports whether the parameter's declared type is numeric.
func (s *ParameterSpec) IsNumeric() bool {
	return s.Type == "Number" || s.Type == "List<Number>"
}

// intField reads an optional integer declaration field. CloudFormation
// allows both numeric and quoted-string forms.
func intField(resourceType, name string, fields map[string]any, key string) (*int, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		return &v, nil
	case float64:
		i := int(v)
		return &i, nil
	case string:
		i, err := strconv.Atoi(v)
		if err == nil {
			return &i, nil
		}
	}
	return nil, &SchemaError{
		ResourceType: resourceType,
		Parameter:    name,
		Reason:       fmt.Sprintf("%s must be an integer", key),
	}
}

// floatField reads an optional numeric declaration field.
func floatField(resourceType, name string, fields map[string]any, key string) (*float64, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		f := float64(v)
		return &f, nil
	case float64:
		return &v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return &f, nil
		}
	}
	return nil, &SchemaError{
		ResourceType: resourceType,
		Parameter:    name,
		Reason:       fmt.Sprintf("%s must be a number", key),
	}
}

// scalarToString renders a scalar template value as the string form used in
// comparisons (CloudFormation parameter values are strings on the wire).
func scalarToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
