// Package cfn implements the CloudFormation template manager core: template
// repository access, parameter schema extraction, parameter validation, and
// the change-set deployment lifecycle.
package cfn

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Default polling behaviour for bounded waits.
const (
	// defaultPollInterval is the delay between stack status checks while
	// waiting for a terminal state.
	defaultPollInterval = 5 * time.Second

	// defaultMaxPollAttempts bounds how long a wait-for-completion call
	// blocks before reporting a timeout.
	defaultMaxPollAttempts = 60
)

// Manager wires the template repository to the provisioning provider and
// exposes the operations the tool façade serves. Every operation handles an
// independent, short-lived unit of work; the repository snapshot is the only
// shared state.
type Manager struct {
	repo *TemplateRepository
	cfg  *Config
	log  zerolog.Logger

	// clientFunc builds the provider client; swapped for fakes in tests.
	clientFunc cfnAPIFactory

	pollInterval    time.Duration
	maxPollAttempts int
}

// NewManager builds a Manager, performing the initial template repository
// sync.
func NewManager(ctx context.Context, cfg *Config, log zerolog.Logger) (*Manager, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0])
	}
	repo, err := NewTemplateRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Manager{
		repo:            repo,
		cfg:             cfg,
		log:             log.With().Str("component", "manager").Logger(),
		clientFunc:      newRealCFNClientFactory,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}, nil
}

// ListResult is the envelope for list_available_resources.
type ListResult struct {
	Success   bool     `json:"success"`
	Resources []string `json:"resources,omitempty"`
	Count     int      `json:"count"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ListAvailableResources lists the resource types the repository offers.
func (m *Manager) ListAvailableResources() *ListResult {
	resources := m.repo.ListResourceTypes()
	return &ListResult{
		Success:   true,
		Resources: resources,
		Count:     len(resources),
		Message:   fmt.Sprintf("Found %d resource types available", len(resources)),
	}
}

// RefreshResult is the envelope for refresh_templates.
type RefreshResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RefreshTemplates re-syncs the template repository and rebuilds the
// snapshot. Concurrent refreshes serialize; readers are unaffected.
func (m *Manager) RefreshTemplates(ctx context.Context) *RefreshResult {
	if err := m.repo.Refresh(ctx); err != nil {
		m.log.Error().Err(err).Msg("template refresh failed")
		return &RefreshResult{Error: err.Error()}
	}
	count := len(m.repo.ListResourceTypes())
	return &RefreshResult{
		Success: true,
		Count:   count,
		Message: fmt.Sprintf("Template repository refreshed; %d resource types available", count),
	}
}

// TemplateInfoResult is the envelope for get_template_info.
type TemplateInfoResult struct {
	Success      bool     `json:"success"`
	ResourceType string   `json:"resource_type,omitempty"`
	Description  string   `json:"description,omitempty"`
	Parameters   []string `json:"parameters,omitempty"`
	Resources    []string `json:"resources,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// GetTemplateInfo summarizes a template: description plus parameter,
// resource, and output names in declaration order.
func (m *Manager) GetTemplateInfo(resourceType string) *TemplateInfoResult {
	doc, err := m.repo.ReadTemplate(resourceType)
	if err != nil {
		return &TemplateInfoResult{Error: err.Error()}
	}
	description := doc.Description
	if description == "" {
		description = "No description available"
	}
	return &TemplateInfoResult{
		Success:      true,
		ResourceType: resourceType,
		Description:  description,
		Parameters:   doc.ParameterOrder,
		Resources:    doc.ResourceOrder,
		Outputs:      doc.OutputOrder,
	}
}

// ParameterDetail is the wire form of one parameter's schema.
type ParameterDetail struct {
	Type                  string   `json:"type"`
	Description           string   `json:"description"`
	Default               any      `json:"default"`
	AllowedValues         []string `json:"allowed_values"`
	AllowedPattern        string   `json:"allowed_pattern,omitempty"`
	ConstraintDescription string   `json:"constraint_description,omitempty"`
	MinLength             *int     `json:"min_length,omitempty"`
	MaxLength             *int     `json:"max_length,omitempty"`
	MinValue              *float64 `json:"min_value,omitempty"`
	MaxValue              *float64 `json:"max_value,omitempty"`
	NoEcho                bool     `json:"no_echo"`
}

// ParametersResult is the envelope for get_template_parameters.
type ParametersResult struct {
	Success            bool                       `json:"success"`
	ResourceType       string                     `json:"resource_type,omitempty"`
	Parameters         map[string]ParameterDetail `json:"parameters,omitempty"`
	RequiredParameters []string                   `json:"required_parameters,omitempty"`
	Error              string                     `json:"error,omitempty"`
}

// GetTemplateParameters returns the full parameter schema for a template.
func (m *Manager) GetTemplateParameters(resourceType string) *ParametersResult {
	schema, err := m.extractSchema(resourceType)
	if err != nil {
		return &ParametersResult{Error: err.Error()}
	}

	details := make(map[string]ParameterDetail, len(schema.Parameters))
	for name, spec := range schema.Parameters {
		details[name] = ParameterDetail{
			Type:                  spec.Type,
			Description:           spec.Description,
			Default:               spec.Default,
			AllowedValues:         spec.AllowedValues,
			AllowedPattern:        spec.AllowedPattern,
			ConstraintDescription: spec.ConstraintDescription,
			MinLength:             spec.MinLength,
			MaxLength:             spec.MaxLength,
			MinValue:              spec.MinValue,
			MaxValue:              spec.MaxValue,
			NoEcho:                spec.NoEcho,
		}
	}
	required := schema.Required
	if required == nil {
		required = []string{}
	}
	return &ParametersResult{
		Success:            true,
		ResourceType:       resourceType,
		Parameters:         details,
		RequiredParameters: required,
	}
}

// ValidateParameters checks caller-supplied values against the template's
// schema. Pure read path: no provider contact, no mutation of values.
func (m *Manager) ValidateParameters(resourceType string, values map[string]string) *ValidationResult {
	schema, err := m.extractSchema(resourceType)
	if err != nil {
		return &ValidationResult{Error: err.Error()}
	}
	return ValidateAgainstSchema(schema, values)
}

// extractSchema reads and extracts the schema for a resource type.
func (m *Manager) extractSchema(resourceType string) (*Schema, error) {
	doc, err := m.repo.ReadTemplate(resourceType)
	if err != nil {
		return nil, err
	}
	return ExtractSchema(resourceType, doc)
}

// newClient builds a provider client, logging a classified diagnostic on
// failure.
func (m *Manager) newClient(ctx context.Context) (cfnAPI, error) {
	client, err := m.clientFunc(ctx, m.cfg)
	if err != nil {
		category, hint := classifyProviderError(err)
		m.log.Error().Err(err).Str("category", category).Str("hint", hint).Msg("provider client init failed")
		return nil, err
	}
	return client, nil
}
