package cfn

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for expected absent-resource conditions. Callers are
// expected to branch on these with errors.Is rather than matching message
// text.
var (
	// ErrResourceTypeNotFound indicates the requested resource type has no
	// directory in the template repository.
	ErrResourceTypeNotFound = errors.New("resource type not found")

	// ErrTemplateNotFound indicates the resource type directory exists but
	// contains no template file.
	ErrTemplateNotFound = errors.New("no template file found")

	// ErrStackNotFound indicates the named stack does not exist in the
	// provisioning account. This is an expected steady state for monitoring
	// callers, not a failure.
	ErrStackNotFound = errors.New("stack does not exist")

	// ErrChangeSetNotFound indicates the named change set does not exist.
	ErrChangeSetNotFound = errors.New("change set does not exist")

	// ErrWaitTimeout indicates a bounded wait expired before the stack
	// reached a terminal status. The underlying provider operation is left
	// running; callers may keep polling via get_stack_status.
	ErrWaitTimeout = errors.New("wait deadline exceeded")
)

// SchemaError indicates the Parameters section of a template is malformed.
// It points at a template authoring defect, not a caller input defect, so it
// is reported rather than silently skipped: a dropped parameter would later
// let validation accept an invalid deployment.
type SchemaError struct {
	ResourceType string
	Parameter    string // empty when the whole section is malformed
	Reason       string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("template %q: parameter %q: %s", e.ResourceType, e.Parameter, e.Reason)
	}
	return fmt.Sprintf("template %q: %s", e.ResourceType, e.Reason)
}

// ProviderError wraps a failed call to the provisioning provider. The
// provider's message is passed through verbatim, plus its error code when
// available.
type ProviderError struct {
	// Op is the provider operation that failed (e.g. "CreateChangeSet").
	Op string
	// Code is the provider's error code, if it supplied one.
	Code string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Error category constants classify provider failures for diagnostics.
const (
	ErrCategoryPermission    = "permission"
	ErrCategoryConfiguration = "configuration"
	ErrCategoryResource      = "resource"
	ErrCategoryTimeout       = "timeout"
	ErrCategoryNetwork       = "network"
)

// Keyword groups for error classification.
var (
	permissionKeywords = []string{
		"accessdenied", "access denied", "unauthorized",
		"not authorized", "forbidden", "insufficientcapabilities",
	}
	networkKeywords = []string{
		"connection refused", "no such host", "dial tcp",
		"tls handshake", "endpoint",
	}
	timeoutKeywords = []string{
		"deadline exceeded", "context canceled", "throttling",
	}
	configKeywords = []string{
		"validation", "invalid", "malformed", "does not match",
	}
)

// Remediation hint constants.
const (
	hintCheckIAM     = "verify the caller's credentials allow cloudformation:* on the target stack"
	hintCheckNetwork = "verify the AWS region is correct and network connectivity is available"
	hintRetryLater   = "the stack operation may still be in progress; retry after a short wait"
	hintCheckInput   = "check the template body and parameter values against CloudFormation requirements"
)

// classifyProviderError determines a category and remediation hint from a
// provider error message. Used for log enrichment only; the verbatim message
// is what callers see.
func classifyProviderError(err error) (category, remediation string) {
	if err == nil {
		return ErrCategoryResource, ""
	}
	lower := strings.ToLower(err.Error())

	if containsAny(lower, permissionKeywords) {
		return ErrCategoryPermission, hintCheckIAM
	}
	if containsAny(lower, networkKeywords) {
		return ErrCategoryNetwork, hintCheckNetwork
	}
	if containsAny(lower, timeoutKeywords) {
		return ErrCategoryTimeout, hintRetryLater
	}
	if containsAny(lower, configKeywords) {
		return ErrCategoryConfiguration, hintCheckInput
	}
	return ErrCategoryResource, ""
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
