package cfn

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// Environment variable names.
const (
	envRepoURL         = "CFN_TEMPLATE_REPO_URL"
	envLocalPath       = "CFN_TEMPLATE_LOCAL_PATH"
	envGitUsername     = "GIT_USERNAME"
	envGitToken        = "GIT_TOKEN"
	envGitSSHKeyPath   = "GIT_SSH_KEY_PATH"
	envAWSRegion       = "AWS_REGION"
	envTemplateBucket  = "CFN_TEMPLATE_BUCKET"
	envExpectedAccount = "CFN_EXPECTED_ACCOUNT_ID"
	envForwardUnknown  = "CFN_FORWARD_UNKNOWN_PARAMETERS"
)

// Defaults.
const (
	defaultLocalPath = "/tmp/cfn-templates"
	defaultRegion    = "us-east-1"
)

// Config holds template repository and provider settings.
type Config struct {
	// RepoURL is the git remote holding templates. When empty, LocalPath
	// must point at an existing template directory.
	RepoURL string
	// LocalPath is the clone target (or the standalone template directory).
	LocalPath string

	// Git credentials for private remotes.
	GitUsername   string
	GitToken      string
	GitSSHKeyPath string

	// Region is the AWS region deployments target.
	Region string

	// TemplateBucket is the S3 bucket used when a template body exceeds
	// the provider's inline size limit. Optional; submission of oversized
	// templates fails without it.
	TemplateBucket string

	// ExpectedAccountID, when set, must match the caller identity reported
	// by STS before any provider call is made. Catches wrong-account
	// credentials early.
	ExpectedAccountID string

	// ForwardUnknownParameters forwards supplied keys missing from the
	// template schema to the provider instead of stripping them. Unknown
	// keys always warn either way.
	ForwardUnknownParameters bool
}

// ConfigFromEnv builds a Config from the environment, applying defaults.
func ConfigFromEnv() *Config {
	cfg := &Config{
		RepoURL:           os.Getenv(envRepoURL),
		LocalPath:         os.Getenv(envLocalPath),
		GitUsername:       os.Getenv(envGitUsername),
		GitToken:          os.Getenv(envGitToken),
		GitSSHKeyPath:     os.Getenv(envGitSSHKeyPath),
		Region:            os.Getenv(envAWSRegion),
		TemplateBucket:    os.Getenv(envTemplateBucket),
		ExpectedAccountID: os.Getenv(envExpectedAccount),
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = defaultLocalPath
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if v := os.Getenv(envForwardUnknown); v != "" {
		b, err := strconv.ParseBool(v)
		cfg.ForwardUnknownParameters = err == nil && b
	}
	return cfg
}

// regionRe matches an AWS region identifier.
var regionRe = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)

// accountIDRe matches a 12-digit AWS account ID.
var accountIDRe = regexp.MustCompile(`^\d{12}$`)

// Validate checks the config and returns any validation errors.
func (c *Config) Validate() []string {
	var errs []string

	if c.RepoURL == "" && c.LocalPath == "" {
		errs = append(errs, "either "+envRepoURL+" or "+envLocalPath+" is required")
	}
	if c.Region == "" {
		errs = append(errs, "region is required")
	} else if !regionRe.MatchString(c.Region) {
		errs = append(errs, fmt.Sprintf("region %q does not match expected format (e.g. us-west-2)", c.Region))
	}
	if c.ExpectedAccountID != "" && !accountIDRe.MatchString(c.ExpectedAccountID) {
		errs = append(errs, fmt.Sprintf("expected account ID %q must be a 12-digit AWS account ID", c.ExpectedAccountID))
	}
	return errs
}
