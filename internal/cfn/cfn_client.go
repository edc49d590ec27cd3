package cfn

import (
	"context"
	"time"
)

// Intent is the caller-declared change set type.
type Intent string

// Change set intents.
const (
	IntentCreate Intent = "CREATE"
	IntentUpdate Intent = "UPDATE"
)

// Canonical change action kinds. Provider action verbs are normalized onto
// these three when a change set is described.
const (
	ActionAdd    = "Add"
	ActionModify = "Modify"
	ActionRemove = "Remove"
)

// previewRequest carries everything the provider needs to compute a change
// set.
type previewRequest struct {
	stackName     string
	changeSetName string
	templateBody  string
	parameters    map[string]string
	intent        Intent
}

// changeSetInfo is the provider's description of a change set, normalized
// to domain types. Change order matches the provider's reported order.
type changeSetInfo struct {
	id           string
	status       string
	statusReason string
	changes      []resourceChange
	parameters   []StackParameter
}

// resourceChange is one planned action within a change set, as reported by
// the provider (action verb not yet normalized).
type resourceChange struct {
	action       string
	logicalID    string
	physicalID   string
	resourceType string
	replacement  string
	scope        []string
}

// stackInfo is a snapshot of a stack's provider-reported state.
type stackInfo struct {
	name            string
	status          string
	statusReason    string
	creationTime    time.Time
	lastUpdatedTime time.Time
	outputs         []StackOutput
	parameters      []StackParameter
}

// StackOutput is one stack output key/value pair.
type StackOutput struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// StackParameter is one applied parameter key/value pair.
type StackParameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// cfnAPI abstracts the provisioning provider calls the orchestrator makes,
// so deployment logic can be tested against fakes.
type cfnAPI interface {
	// SubmitPreview asks the provider to compute a change set and returns
	// its identifier. The provider-side artifact persists until executed or
	// deleted.
	SubmitPreview(ctx context.Context, req *previewRequest) (string, error)

	// InspectPreview returns the provider's change set description.
	// Read-only. Returns ErrChangeSetNotFound (wrapped) when absent.
	InspectPreview(ctx context.Context, changeSetName, stackName string) (*changeSetInfo, error)

	// ApplyPreview starts execution of a previously computed change set.
	ApplyPreview(ctx context.Context, changeSetName, stackName string) error

	// QueryStatus returns the stack snapshot, or an error wrapping
	// ErrStackNotFound when the stack does not exist.
	QueryStatus(ctx context.Context, stackName string) (*stackInfo, error)

	// Teardown starts stack deletion. Deleting an absent stack returns nil;
	// repeated teardown is a normal caller retry pattern.
	Teardown(ctx context.Context, stackName string) error
}

// cfnAPIFactory builds a provider client for a config. The indirection
// mirrors how the real client is swapped for fakes in tests.
type cfnAPIFactory func(ctx context.Context, cfg *Config) (cfnAPI, error)
