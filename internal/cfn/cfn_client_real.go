package cfn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// maxTemplateBodyBytes is the provider's inline TemplateBody size limit.
// Bodies above it are uploaded to S3 and submitted by URL.
const maxTemplateBodyBytes = 51200

// templateKeyPrefix is the S3 key prefix for uploaded template bodies.
const templateKeyPrefix = "cfn-templates"

// realCFNClient implements cfnAPI against the AWS CloudFormation API.
type realCFNClient struct {
	client   *cloudformation.Client
	s3Client *s3.Client
	cfg      *Config
}

// newRealCFNClient builds a realCFNClient from the Config. When an expected
// account ID is configured, the caller identity is verified up front to
// catch wrong-account credentials before any CloudFormation call is made.
func newRealCFNClient(ctx context.Context, cfg *Config) (*realCFNClient, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.ExpectedAccountID != "" {
		identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return nil, fmt.Errorf("STS GetCallerIdentity: %w", err)
		}
		caller := aws.ToString(identity.Account)
		if caller != cfg.ExpectedAccountID {
			return nil, fmt.Errorf(
				"AWS caller account %s does not match expected account %s:"+
					" check your AWS credentials or the expected account setting",
				caller, cfg.ExpectedAccountID,
			)
		}
	}

	return &realCFNClient{
		client:   cloudformation.NewFromConfig(awsCfg),
		s3Client: s3.NewFromConfig(awsCfg),
		cfg:      cfg,
	}, nil
}

// newRealCFNClientFactory is the cfnAPIFactory used by NewManager.
func newRealCFNClientFactory(ctx context.Context, cfg *Config) (cfnAPI, error) {
	return newRealCFNClient(ctx, cfg)
}

// SubmitPreview creates a CloudFormation change set and returns its ID.
func (c *realCFNClient) SubmitPreview(ctx context.Context, req *previewRequest) (string, error) {
	params := make([]cftypes.Parameter, 0, len(req.parameters))
	for _, key := range sortedValueKeys(req.parameters) {
		params = append(params, cftypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(req.parameters[key]),
		})
	}

	input := &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(req.stackName),
		ChangeSetName: aws.String(req.changeSetName),
		ChangeSetType: changeSetType(req.intent),
		Parameters:    params,
		Capabilities: []cftypes.Capability{
			cftypes.CapabilityCapabilityIam,
			cftypes.CapabilityCapabilityNamedIam,
		},
	}

	if len(req.templateBody) > maxTemplateBodyBytes {
		url, err := c.uploadTemplate(ctx, req)
		if err != nil {
			return "", err
		}
		input.TemplateURL = aws.String(url)
	} else {
		input.TemplateBody = aws.String(req.templateBody)
	}

	out, err := c.client.CreateChangeSet(ctx, input)
	if err != nil {
		return "", providerError("CreateChangeSet", err)
	}
	return aws.ToString(out.Id), nil
}

// uploadTemplate stores an oversized template body in S3 and returns its
// object URL for TemplateURL submission.
func (c *realCFNClient) uploadTemplate(ctx context.Context, req *previewRequest) (string, error) {
	if c.cfg.TemplateBucket == "" {
		return "", fmt.Errorf(
			"template body is %d bytes, above the %d-byte inline limit, and no %s is configured",
			len(req.templateBody), maxTemplateBodyBytes, envTemplateBucket,
		)
	}
	key := fmt.Sprintf("%s/%s/%s.template", templateKeyPrefix, req.stackName, req.changeSetName)
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.TemplateBucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(req.templateBody),
	})
	if err != nil {
		return "", providerError("S3 PutObject", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.TemplateBucket, c.cfg.Region, key), nil
}

// InspectPreview describes a change set. Change order is preserved exactly
// as reported.
func (c *realCFNClient) InspectPreview(ctx context.Context, changeSetName, stackName string) (*changeSetInfo, error) {
	out, err := c.client.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
		ChangeSetName: aws.String(changeSetName),
		StackName:     aws.String(stackName),
	})
	if err != nil {
		if isChangeSetNotFound(err) {
			return nil, fmt.Errorf("change set %q on stack %q: %w", changeSetName, stackName, ErrChangeSetNotFound)
		}
		return nil, providerError("DescribeChangeSet", err)
	}

	info := &changeSetInfo{
		id:           aws.ToString(out.ChangeSetId),
		status:       string(out.Status),
		statusReason: aws.ToString(out.StatusReason),
	}
	for _, change := range out.Changes {
		rc := change.ResourceChange
		if rc == nil {
			continue
		}
		scope := make([]string, 0, len(rc.Scope))
		for _, s := range rc.Scope {
			scope = append(scope, string(s))
		}
		info.changes = append(info.changes, resourceChange{
			action:       string(rc.Action),
			logicalID:    aws.ToString(rc.LogicalResourceId),
			physicalID:   aws.ToString(rc.PhysicalResourceId),
			resourceType: aws.ToString(rc.ResourceType),
			replacement:  string(rc.Replacement),
			scope:        scope,
		})
	}
	for _, p := range out.Parameters {
		info.parameters = append(info.parameters, StackParameter{
			Key:   aws.ToString(p.ParameterKey),
			Value: aws.ToString(p.ParameterValue),
		})
	}
	return info, nil
}

// ApplyPreview executes a change set.
func (c *realCFNClient) ApplyPreview(ctx context.Context, changeSetName, stackName string) error {
	_, err := c.client.ExecuteChangeSet(ctx, &cloudformation.ExecuteChangeSetInput{
		ChangeSetName: aws.String(changeSetName),
		StackName:     aws.String(stackName),
	})
	if err != nil {
		if isChangeSetNotFound(err) {
			return fmt.Errorf("change set %q on stack %q: %w", changeSetName, stackName, ErrChangeSetNotFound)
		}
		return providerError("ExecuteChangeSet", err)
	}
	return nil
}

// QueryStatus describes a stack, mapping the provider's absent-stack
// ValidationError onto ErrStackNotFound.
func (c *realCFNClient) QueryStatus(ctx context.Context, stackName string) (*stackInfo, error) {
	out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackNotFound(err) {
			return nil, fmt.Errorf("stack %q: %w", stackName, ErrStackNotFound)
		}
		return nil, providerError("DescribeStacks", err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %q: %w", stackName, ErrStackNotFound)
	}

	stack := out.Stacks[0]
	info := &stackInfo{
		name:         aws.ToString(stack.StackName),
		status:       string(stack.StackStatus),
		statusReason: aws.ToString(stack.StackStatusReason),
	}
	if stack.CreationTime != nil {
		info.creationTime = *stack.CreationTime
	}
	if stack.LastUpdatedTime != nil {
		info.lastUpdatedTime = *stack.LastUpdatedTime
	}
	for _, o := range stack.Outputs {
		info.outputs = append(info.outputs, StackOutput{
			Key:         aws.ToString(o.OutputKey),
			Value:       aws.ToString(o.OutputValue),
			Description: aws.ToString(o.Description),
		})
	}
	for _, p := range stack.Parameters {
		info.parameters = append(info.parameters, StackParameter{
			Key:   aws.ToString(p.ParameterKey),
			Value: aws.ToString(p.ParameterValue),
		})
	}
	return info, nil
}

// Teardown starts stack deletion. An absent stack is success, not failure.
func (c *realCFNClient) Teardown(ctx context.Context, stackName string) error {
	_, err := c.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackNotFound(err) {
			return nil
		}
		return providerError("DeleteStack", err)
	}
	return nil
}

// changeSetType maps a domain intent onto the SDK enum.
func changeSetType(intent Intent) cftypes.ChangeSetType {
	if intent == IntentUpdate {
		return cftypes.ChangeSetTypeUpdate
	}
	return cftypes.ChangeSetTypeCreate
}

// providerError wraps an SDK error as a ProviderError, extracting the
// provider's error code when available.
func providerError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Op: op, Code: apiErr.ErrorCode(), Cause: err}
	}
	return &ProviderError{Op: op, Cause: err}
}

// isStackNotFound detects the ValidationError CloudFormation returns for a
// stack that does not exist.
func isStackNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// isChangeSetNotFound detects the absent-change-set error.
func isChangeSetNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ChangeSetNotFound"
}
