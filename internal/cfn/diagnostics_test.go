package cfn

import (
	"strings"
	"testing"
)

func TestDiagnoseConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantMsgs []string
	}{
		{
			name: "clean config",
			cfg: Config{
				RepoURL:   "https://example.com/templates.git",
				LocalPath: "/srv/templates",
				Region:    "us-west-2",
			},
		},
		{
			name: "placeholder account",
			cfg: Config{
				RepoURL:           "https://example.com/templates.git",
				LocalPath:         "/srv/templates",
				ExpectedAccountID: "123456789012",
			},
			wantMsgs: []string{"placeholder account ID"},
		},
		{
			name: "conflicting git auth",
			cfg: Config{
				RepoURL:       "https://example.com/templates.git",
				LocalPath:     "/srv/templates",
				GitUsername:   "deploy",
				GitToken:      "tok",
				GitSSHKeyPath: "/root/.ssh/id_ed25519",
			},
			wantMsgs: []string{"both"},
		},
		{
			name: "token without username",
			cfg: Config{
				RepoURL:   "https://example.com/templates.git",
				LocalPath: "/srv/templates",
				GitToken:  "tok",
			},
			wantMsgs: []string{"GIT_USERNAME is empty"},
		},
		{
			name: "ssh remote without key",
			cfg: Config{
				RepoURL:   "git@example.com:org/templates.git",
				LocalPath: "/srv/templates",
			},
			wantMsgs: []string{"ssh remote"},
		},
		{
			name: "ephemeral local-only path",
			cfg: Config{
				LocalPath: "/tmp/cfn-templates",
			},
			wantMsgs: []string{"/tmp"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			warnings := DiagnoseConfig(&tc.cfg)
			if len(tc.wantMsgs) == 0 {
				if len(warnings) != 0 {
					t.Errorf("warnings = %v, want none", warnings)
				}
				return
			}
			for _, want := range tc.wantMsgs {
				found := false
				for _, w := range warnings {
					if strings.Contains(w.Message, want) {
						found = true
					}
				}
				if !found {
					t.Errorf("warnings %v do not mention %q", warnings, want)
				}
			}
		})
	}
}

func TestFormatWarnings(t *testing.T) {
	if got := FormatWarnings(nil); got != "" {
		t.Errorf("FormatWarnings(nil) = %q, want empty", got)
	}
	out := FormatWarnings([]DiagnosticWarning{
		{Category: ErrCategoryConfiguration, Message: "m1", Hint: "h1"},
		{Category: ErrCategoryPermission, Message: "m2"},
	})
	if !strings.Contains(out, "2 diagnostic warning(s)") {
		t.Errorf("header missing: %q", out)
	}
	if !strings.Contains(out, "[configuration] m1 (hint: h1)") {
		t.Errorf("first warning missing: %q", out)
	}
	if !strings.Contains(out, "[permission] m2") {
		t.Errorf("second warning missing: %q", out)
	}
}
