package cfn

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateDocument is a parsed CloudFormation template. Resources and
// Outputs are carried through untouched; only the Parameters section is
// interpreted further (by ExtractSchema). Each read reconstructs the
// document from the raw body, so documents are never shared across requests.
type TemplateDocument struct {
	Description string

	// Parameters maps parameter name to its raw declaration fields.
	// ParameterOrder preserves the declaration order from the template.
	Parameters     map[string]map[string]any
	ParameterOrder []string

	Resources     map[string]any
	ResourceOrder []string

	Outputs     map[string]any
	OutputOrder []string

	// parametersMalformed records why the Parameters section as a whole
	// could not be interpreted (e.g. it is a sequence, not a mapping).
	// ExtractSchema turns this into a SchemaError; parsing itself succeeds
	// so that Resources/Outputs remain readable.
	parametersMalformed string
}

// cfnIntrinsics lists the CloudFormation short-form intrinsic function tags
// the parser accepts. A !Tag scalar/sequence/mapping is converted to a
// single-key mapping {Tag: value}, matching the long form.
var cfnIntrinsics = map[string]bool{
	"Ref":         true,
	"Condition":   true,
	"Equals":      true,
	"Not":         true,
	"And":         true,
	"Or":          true,
	"If":          true,
	"FindInMap":   true,
	"Base64":      true,
	"GetAtt":      true,
	"GetAZs":      true,
	"ImportValue": true,
	"Join":        true,
	"Select":      true,
	"Split":       true,
	"Sub":         true,
	"Transform":   true,
	"Cidr":        true,
}

// ParseTemplate parses a raw template body into a TemplateDocument. JSON
// templates parse too, being a YAML subset. CloudFormation short-form intrinsics
// (!Ref, !GetAtt, ...) are normalized to their mapping form.
func ParseTemplate(body []byte) (*TemplateDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse template: empty document")
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse template: top level must be a mapping, got %s", nodeKindName(top.Kind))
	}

	doc := &TemplateDocument{
		Parameters: map[string]map[string]any{},
		Resources:  map[string]any{},
		Outputs:    map[string]any{},
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		valNode := top.Content[i+1]

		switch key {
		case "Description":
			doc.Description = valNode.Value
		case "Parameters":
			if err := decodeParameters(doc, valNode); err != nil {
				return nil, fmt.Errorf("Parameters: %w", err)
			}
		case "Resources":
			m, order, err := decodeSection(valNode)
			if err != nil {
				return nil, fmt.Errorf("Resources: %w", err)
			}
			doc.Resources, doc.ResourceOrder = m, order
		case "Outputs":
			m, order, err := decodeSection(valNode)
			if err != nil {
				return nil, fmt.Errorf("Outputs: %w", err)
			}
			doc.Outputs, doc.OutputOrder = m, order
		default:
			// AWSTemplateFormatVersion, Mappings, Conditions, Metadata, ...
			// are passed over; they play no role in schema extraction.
		}
	}

	return doc, nil
}

// decodeParameters fills the document's Parameters map from the Parameters
// section node. A non-mapping section or non-mapping entry is recorded
// rather than rejected, so that ExtractSchema can report it as a
// SchemaError with context.
func decodeParameters(doc *TemplateDocument, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		doc.parametersMalformed = fmt.Sprintf("Parameters section must be a mapping, got %s", nodeKindName(node.Kind))
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		valNode := node.Content[i+1]
		doc.ParameterOrder = append(doc.ParameterOrder, name)

		val, err := decodeNode(valNode)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fields, ok := val.(map[string]any)
		if !ok {
			// Recorded as nil so ExtractSchema reports a SchemaError with
			// the parameter name attached.
			doc.Parameters[name] = nil
			continue
		}
		doc.Parameters[name] = fields
	}
	return nil
}

// decodeSection decodes a top-level mapping section (Resources, Outputs)
// into a name-keyed map plus its declaration order.
func decodeSection(node *yaml.Node) (map[string]any, []string, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("section must be a mapping, got %s", nodeKindName(node.Kind))
	}
	m := make(map[string]any, len(node.Content)/2)
	order := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		val, err := decodeNode(node.Content[i+1])
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		m[name] = val
		order = append(order, name)
	}
	return m, order, nil
}

// decodeNode converts a yaml.Node tree into plain Go values, translating
// CloudFormation short-form intrinsic tags into their {Name: value} mapping
// form along the way.
func decodeNode(node *yaml.Node) (any, error) {
	if node.Kind == yaml.AliasNode {
		return decodeNode(node.Alias)
	}

	if name, ok := intrinsicName(node.Tag); ok {
		val, err := decodeUntagged(node)
		if err != nil {
			return nil, err
		}
		return map[string]any{name: val}, nil
	}
	if strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!") {
		return nil, fmt.Errorf("unsupported tag %s", node.Tag)
	}

	return decodeUntagged(node)
}

// decodeUntagged converts a node ignoring any custom tag.
func decodeUntagged(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalar(node), nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := decodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	default:
		return nil, nil
	}
}

// decodeScalar resolves a scalar node to its natural Go type.
func decodeScalar(node *yaml.Node) any {
	switch node.Tag {
	case "!!null":
		return nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(node.Value))
		if err == nil {
			return b
		}
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err == nil {
			return int(i)
		}
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err == nil {
			return f
		}
	}
	return node.Value
}

// intrinsicName maps a short-form tag like "!Ref" to its function name.
func intrinsicName(tag string) (string, bool) {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return "", false
	}
	name := strings.TrimPrefix(tag, "!")
	if cfnIntrinsics[name] {
		return name, true
	}
	return "", false
}

// nodeKindName returns a readable name for a yaml node kind.
func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
