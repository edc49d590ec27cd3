package cfn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		envRepoURL, envLocalPath, envGitUsername, envGitToken,
		envGitSSHKeyPath, envAWSRegion, envTemplateBucket,
		envExpectedAccount, envForwardUnknown,
	} {
		t.Setenv(key, "")
	}

	cfg := ConfigFromEnv()
	assert.Equal(t, defaultLocalPath, cfg.LocalPath)
	assert.Equal(t, defaultRegion, cfg.Region)
	assert.False(t, cfg.ForwardUnknownParameters)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv(envRepoURL, "https://example.com/templates.git")
	t.Setenv(envLocalPath, "/srv/templates")
	t.Setenv(envAWSRegion, "eu-west-1")
	t.Setenv(envForwardUnknown, "true")

	cfg := ConfigFromEnv()
	assert.Equal(t, "https://example.com/templates.git", cfg.RepoURL)
	assert.Equal(t, "/srv/templates", cfg.LocalPath)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.True(t, cfg.ForwardUnknownParameters)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{LocalPath: "/srv/templates", Region: "us-west-2"},
		},
		{
			name: "valid with account",
			cfg:  Config{LocalPath: "/srv/templates", Region: "ap-southeast-2", ExpectedAccountID: "123456789012"},
		},
		{
			name:    "bad region",
			cfg:     Config{LocalPath: "/srv/templates", Region: "mars-1"},
			wantErr: "region",
		},
		{
			name:    "bad account ID",
			cfg:     Config{LocalPath: "/srv/templates", Region: "us-west-2", ExpectedAccountID: "12345"},
			wantErr: "account ID",
		},
		{
			name:    "no template source",
			cfg:     Config{Region: "us-west-2"},
			wantErr: "required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if strings.Contains(e, tc.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "Validate() = %v, want to mention %q", errs, tc.wantErr)
		})
	}
}
