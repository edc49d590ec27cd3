package cfn

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChangeSetResult is the envelope for create_change_set.
type ChangeSetResult struct {
	Success       bool              `json:"success"`
	StackName     string            `json:"stack_name,omitempty"`
	ChangeSetName string            `json:"change_set_name,omitempty"`
	ChangeSetID   string            `json:"change_set_id,omitempty"`
	ChangeSetType string            `json:"change_set_type,omitempty"`
	Message       string            `json:"message,omitempty"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// ChangeDetail is one planned resource change in a change set description.
type ChangeDetail struct {
	Action       string   `json:"action"`
	LogicalID    string   `json:"logical_resource_id"`
	PhysicalID   string   `json:"physical_resource_id,omitempty"`
	ResourceType string   `json:"resource_type"`
	Replacement  string   `json:"replacement,omitempty"`
	Scope        []string `json:"scope,omitempty"`
}

// DescribeResult is the envelope for describe_change_set.
type DescribeResult struct {
	Success       bool             `json:"success"`
	StackName     string           `json:"stack_name,omitempty"`
	ChangeSetName string           `json:"change_set_name,omitempty"`
	ChangeSetID   string           `json:"change_set_id,omitempty"`
	Status        string           `json:"status,omitempty"`
	StatusReason  string           `json:"status_reason,omitempty"`
	Changes       []ChangeDetail   `json:"changes"`
	Parameters    []StackParameter `json:"parameters,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// ExecuteResult is the envelope for execute_change_set.
type ExecuteResult struct {
	Success       bool   `json:"success"`
	StackName     string `json:"stack_name,omitempty"`
	ChangeSetName string `json:"change_set_name,omitempty"`
	StackStatus   string `json:"stack_status,omitempty"`
	TimedOut      bool   `json:"timed_out,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// StatusResult is the envelope for get_stack_status.
type StatusResult struct {
	Success         bool             `json:"success"`
	StackName       string           `json:"stack_name,omitempty"`
	Status          string           `json:"status,omitempty"`
	StatusReason    string           `json:"status_reason,omitempty"`
	CreationTime    string           `json:"creation_time,omitempty"`
	LastUpdatedTime string           `json:"last_updated_time,omitempty"`
	Outputs         []StackOutput    `json:"outputs,omitempty"`
	Parameters      []StackParameter `json:"parameters,omitempty"`
	Message         string           `json:"message,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// DeleteResult is the envelope for delete_stack.
type DeleteResult struct {
	Success   bool   `json:"success"`
	StackName string `json:"stack_name,omitempty"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// stackDoesNotExist is the status reported for an absent stack. Absence is
// an answer, not a failure.
const stackDoesNotExist = "DOES_NOT_EXIST"

// CreateChangeSet validates parameters, resolves the effective change set
// type against live stack state, and submits a preview to the provider.
// Nothing is mutated; the change set must be executed separately.
func (m *Manager) CreateChangeSet(ctx context.Context, resourceType, stackName string, values map[string]string, declared Intent) *ChangeSetResult {
	attempt := newDeployment(StateValidating)

	if err := validateStackName(stackName); err != nil {
		attempt.fail()
		return &ChangeSetResult{Error: err.Error()}
	}

	schema, err := m.extractSchema(resourceType)
	if err != nil {
		attempt.fail()
		return &ChangeSetResult{Error: err.Error()}
	}
	validation := ValidateAgainstSchema(schema, values)
	if !validation.Valid {
		attempt.fail()
		return &ChangeSetResult{
			Error:      "parameter validation failed",
			Validation: validation,
		}
	}

	body, err := m.repo.TemplateBody(resourceType)
	if err != nil {
		attempt.fail()
		return &ChangeSetResult{Error: err.Error()}
	}

	client, err := m.newClient(ctx)
	if err != nil {
		attempt.fail()
		return &ChangeSetResult{Error: err.Error()}
	}

	intent, err := m.resolveIntent(ctx, client, stackName, declared)
	if err != nil {
		attempt.fail()
		return &ChangeSetResult{Error: err.Error()}
	}

	if err := attempt.transition(StatePreviewing); err != nil {
		return &ChangeSetResult{Error: err.Error()}
	}

	params := values
	if !m.cfg.ForwardUnknownParameters {
		params = filterKnownParameters(schema, values)
	}

	csName := changeSetName(stackName, intent)
	id, err := client.SubmitPreview(ctx, &previewRequest{
		stackName:     stackName,
		changeSetName: csName,
		templateBody:  body,
		parameters:    params,
		intent:        intent,
	})
	if err != nil {
		attempt.fail()
		category, hint := classifyProviderError(err)
		m.log.Error().Err(err).
			Str("stack", stackName).
			Str("category", category).
			Str("hint", hint).
			Msg("change set creation failed")
		return &ChangeSetResult{Error: err.Error()}
	}

	m.log.Info().
		Str("stack", stackName).
		Str("change_set", csName).
		Str("type", string(intent)).
		Msg("change set created")
	return &ChangeSetResult{
		Success:       true,
		StackName:     stackName,
		ChangeSetName: csName,
		ChangeSetID:   id,
		ChangeSetType: string(intent),
		Validation:    validation,
		Message:       "Change set created. Review it with describe_change_set before executing.",
	}
}

// resolveIntent settles the effective change set type. Live stack existence
// wins over the caller's declared intent in both directions; the declaration
// only decides when the existence probe itself is inconclusive and a
// declaration was given.
func (m *Manager) resolveIntent(ctx context.Context, client cfnAPI, stackName string, declared Intent) (Intent, error) {
	_, err := client.QueryStatus(ctx, stackName)
	switch {
	case err == nil:
		if declared == IntentCreate {
			m.log.Warn().Str("stack", stackName).Msg("stack exists; using UPDATE instead of declared CREATE")
		}
		return IntentUpdate, nil
	case errors.Is(err, ErrStackNotFound):
		if declared == IntentUpdate {
			m.log.Warn().Str("stack", stackName).Msg("stack does not exist; using CREATE instead of declared UPDATE")
		}
		return IntentCreate, nil
	default:
		if declared == IntentCreate || declared == IntentUpdate {
			m.log.Warn().Err(err).Str("stack", stackName).Msg("stack existence probe failed; trusting declared intent")
			return declared, nil
		}
		return "", fmt.Errorf("resolve change set type for stack %q: %w", stackName, err)
	}
}

// filterKnownParameters drops supplied keys the schema does not declare.
// The validator already warned about them; forwarding them would fail the
// provider call outright.
func filterKnownParameters(schema *Schema, values map[string]string) map[string]string {
	filtered := make(map[string]string, len(values))
	for key, value := range values {
		if _, ok := schema.Parameters[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}

// DescribeChangeSet returns the provider's description of a change set with
// action verbs normalized onto Add, Modify, and Remove. Change order is
// preserved as reported. Read-only and repeatable.
func (m *Manager) DescribeChangeSet(ctx context.Context, changeSetName, stackName string) *DescribeResult {
	attempt := newDeployment(StatePreviewing)

	client, err := m.newClient(ctx)
	if err != nil {
		attempt.fail()
		return &DescribeResult{Error: err.Error()}
	}

	info, err := client.InspectPreview(ctx, changeSetName, stackName)
	if err != nil {
		attempt.fail()
		return &DescribeResult{Error: err.Error()}
	}
	if err := attempt.transition(StatePreviewReady); err != nil {
		return &DescribeResult{Error: err.Error()}
	}

	changes := make([]ChangeDetail, 0, len(info.changes))
	for _, c := range info.changes {
		changes = append(changes, ChangeDetail{
			Action:       normalizeAction(c.action),
			LogicalID:    c.logicalID,
			PhysicalID:   c.physicalID,
			ResourceType: c.resourceType,
			Replacement:  c.replacement,
			Scope:        c.scope,
		})
	}
	return &DescribeResult{
		Success:       true,
		StackName:     stackName,
		ChangeSetName: changeSetName,
		ChangeSetID:   info.id,
		Status:        info.status,
		StatusReason:  info.statusReason,
		Changes:       changes,
		Parameters:    info.parameters,
	}
}

// normalizeAction maps a provider action verb onto the canonical kinds.
// Import surfaces a new resource under the stack; Dynamic means the provider
// cannot tell before execution whether the resource will be replaced, which
// callers read as a modification.
func normalizeAction(action string) string {
	switch action {
	case ActionAdd, ActionModify, ActionRemove:
		return action
	case "Import":
		return ActionAdd
	case "Dynamic":
		return ActionModify
	case "Delete":
		return ActionRemove
	default:
		return action
	}
}

// ExecuteChangeSet executes a previously reviewed change set. With wait set,
// it polls until the stack reaches a terminal state, the attempt budget runs
// out, or ctx is cancelled; a timeout is reported, never swallowed.
func (m *Manager) ExecuteChangeSet(ctx context.Context, changeSetName, stackName string, wait bool) *ExecuteResult {
	attempt := newDeployment(StatePreviewReady)

	client, err := m.newClient(ctx)
	if err != nil {
		attempt.fail()
		return &ExecuteResult{Error: err.Error()}
	}

	if err := attempt.transition(StateApplying); err != nil {
		return &ExecuteResult{Error: err.Error()}
	}
	if err := client.ApplyPreview(ctx, changeSetName, stackName); err != nil {
		attempt.fail()
		category, hint := classifyProviderError(err)
		m.log.Error().Err(err).
			Str("stack", stackName).
			Str("change_set", changeSetName).
			Str("category", category).
			Str("hint", hint).
			Msg("change set execution failed")
		return &ExecuteResult{Error: err.Error()}
	}
	m.log.Info().Str("stack", stackName).Str("change_set", changeSetName).Msg("change set execution started")

	if !wait {
		return &ExecuteResult{
			Success:       true,
			StackName:     stackName,
			ChangeSetName: changeSetName,
			Message:       "Change set execution started. Poll get_stack_status for completion.",
		}
	}

	status, err := m.waitForStackTerminal(ctx, client, stackName)
	switch {
	case err == nil && isTerminalSuccess(status):
		if err := attempt.transition(StateApplied); err != nil {
			return &ExecuteResult{Error: err.Error()}
		}
		return &ExecuteResult{
			Success:       true,
			StackName:     stackName,
			ChangeSetName: changeSetName,
			StackStatus:   status,
			Message:       fmt.Sprintf("Stack %s reached %s", stackName, status),
		}
	case err == nil:
		attempt.fail()
		return &ExecuteResult{
			StackName:     stackName,
			ChangeSetName: changeSetName,
			StackStatus:   status,
			Error:         fmt.Sprintf("stack %s reached %s", stackName, status),
		}
	case errors.Is(err, ErrWaitTimeout):
		return &ExecuteResult{
			StackName:     stackName,
			ChangeSetName: changeSetName,
			StackStatus:   status,
			TimedOut:      true,
			Error: fmt.Sprintf(
				"timed out after %s waiting for stack %s; the operation is still running, poll get_stack_status",
				m.waitBudget(), stackName,
			),
		}
	default:
		attempt.fail()
		return &ExecuteResult{
			StackName:     stackName,
			ChangeSetName: changeSetName,
			StackStatus:   status,
			Error:         err.Error(),
		}
	}
}

// GetStackStatus reports a stack's current status, outputs, and applied
// parameters. An absent stack is a successful answer with status
// DOES_NOT_EXIST, so callers can poll through deletion without treating the
// end state as an error.
func (m *Manager) GetStackStatus(ctx context.Context, stackName string) *StatusResult {
	client, err := m.newClient(ctx)
	if err != nil {
		return &StatusResult{Error: err.Error()}
	}

	info, err := client.QueryStatus(ctx, stackName)
	if err != nil {
		if errors.Is(err, ErrStackNotFound) {
			return &StatusResult{
				Success:   true,
				StackName: stackName,
				Status:    stackDoesNotExist,
				Message:   fmt.Sprintf("Stack %s does not exist", stackName),
			}
		}
		return &StatusResult{Error: err.Error()}
	}

	result := &StatusResult{
		Success:      true,
		StackName:    info.name,
		Status:       info.status,
		StatusReason: info.statusReason,
		Outputs:      info.outputs,
		Parameters:   info.parameters,
	}
	if !info.creationTime.IsZero() {
		result.CreationTime = info.creationTime.UTC().Format(time.RFC3339)
	}
	if !info.lastUpdatedTime.IsZero() {
		result.LastUpdatedTime = info.lastUpdatedTime.UTC().Format(time.RFC3339)
	}
	return result
}

// DeleteStack starts stack deletion. Deleting an absent stack succeeds, so
// retries are harmless. With wait set, it polls until the stack is gone.
func (m *Manager) DeleteStack(ctx context.Context, stackName string, wait bool) *DeleteResult {
	attempt := newDeployment(StateApplied)

	client, err := m.newClient(ctx)
	if err != nil {
		return &DeleteResult{Error: err.Error()}
	}

	if err := attempt.transition(StateDeleting); err != nil {
		return &DeleteResult{Error: err.Error()}
	}
	if err := client.Teardown(ctx, stackName); err != nil {
		attempt.fail()
		category, hint := classifyProviderError(err)
		m.log.Error().Err(err).
			Str("stack", stackName).
			Str("category", category).
			Str("hint", hint).
			Msg("stack deletion failed")
		return &DeleteResult{Error: err.Error()}
	}
	m.log.Info().Str("stack", stackName).Msg("stack deletion started")

	if !wait {
		return &DeleteResult{
			Success:   true,
			StackName: stackName,
			Message:   "Stack deletion started. Poll get_stack_status for completion.",
		}
	}

	status, err := m.waitForStackGone(ctx, client, stackName)
	switch {
	case err == nil:
		if err := attempt.transition(StateDeleted); err != nil {
			return &DeleteResult{Error: err.Error()}
		}
		return &DeleteResult{
			Success:   true,
			StackName: stackName,
			Message:   fmt.Sprintf("Stack %s deleted", stackName),
		}
	case errors.Is(err, ErrWaitTimeout):
		return &DeleteResult{
			StackName: stackName,
			TimedOut:  true,
			Error: fmt.Sprintf(
				"timed out after %s waiting for stack %s deletion; poll get_stack_status",
				m.waitBudget(), stackName,
			),
		}
	default:
		attempt.fail()
		return &DeleteResult{
			StackName: stackName,
			Error:     fmt.Sprintf("stack %s deletion: %s (last status %s)", stackName, err, status),
		}
	}
}

// waitBudget is the total wall-clock time the polling loop may spend.
func (m *Manager) waitBudget() time.Duration {
	return time.Duration(m.maxPollAttempts) * m.pollInterval
}

// waitForStackTerminal polls the stack until it reaches a terminal status
// (success or failure), returning the last observed status. Returns
// ErrWaitTimeout when the attempt budget runs out and ctx.Err when
// cancelled. The status is checked before each sleep, so a stack already
// terminal costs one query and no delay.
func (m *Manager) waitForStackTerminal(ctx context.Context, client cfnAPI, stackName string) (string, error) {
	var last string
	for attempt := 0; attempt < m.maxPollAttempts; attempt++ {
		info, err := client.QueryStatus(ctx, stackName)
		if err != nil {
			return last, err
		}
		last = info.status
		if isTerminalSuccess(last) || isTerminalFailure(last) {
			return last, nil
		}
		m.log.Debug().Str("stack", stackName).Str("status", last).Int("attempt", attempt+1).Msg("waiting for terminal status")

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
	return last, ErrWaitTimeout
}

// waitForStackGone polls until the stack no longer exists or reports
// DELETE_COMPLETE. A DELETE_FAILED status is returned as an error.
func (m *Manager) waitForStackGone(ctx context.Context, client cfnAPI, stackName string) (string, error) {
	var last string
	for attempt := 0; attempt < m.maxPollAttempts; attempt++ {
		info, err := client.QueryStatus(ctx, stackName)
		if err != nil {
			if errors.Is(err, ErrStackNotFound) {
				return stackDoesNotExist, nil
			}
			return last, err
		}
		last = info.status
		switch last {
		case "DELETE_COMPLETE":
			return last, nil
		case "DELETE_FAILED":
			return last, fmt.Errorf("deletion failed: %s", info.statusReason)
		}
		m.log.Debug().Str("stack", stackName).Str("status", last).Int("attempt", attempt+1).Msg("waiting for deletion")

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
	return last, ErrWaitTimeout
}

// isTerminalSuccess reports whether status is a settled, healthy stack
// state.
func isTerminalSuccess(status string) bool {
	switch status {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE", "IMPORT_COMPLETE", "DELETE_COMPLETE":
		return true
	}
	return false
}

// isTerminalFailure reports whether status is settled but unhealthy. Every
// rollback terminal state counts: the stack stopped changing, and the
// requested change did not land.
func isTerminalFailure(status string) bool {
	switch status {
	case "CREATE_FAILED", "DELETE_FAILED", "UPDATE_FAILED", "IMPORT_ROLLBACK_FAILED",
		"ROLLBACK_COMPLETE", "ROLLBACK_FAILED",
		"UPDATE_ROLLBACK_COMPLETE", "UPDATE_ROLLBACK_FAILED",
		"IMPORT_ROLLBACK_COMPLETE":
		return true
	}
	return false
}
