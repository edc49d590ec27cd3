package cfn

import (
	"fmt"
	"strings"
)

// DiagnosticWarning represents a non-fatal issue detected during startup
// diagnostics.
type DiagnosticWarning struct {
	Category string
	Message  string
	Hint     string
}

// String formats the warning for display.
func (w DiagnosticWarning) String() string {
	if w.Hint != "" {
		return fmt.Sprintf("[%s] %s (hint: %s)", w.Category, w.Message, w.Hint)
	}
	return fmt.Sprintf("[%s] %s", w.Category, w.Message)
}

// DiagnoseConfig checks the configuration for common misconfigurations and
// returns warnings. Unlike Validate(), these are non-fatal: they highlight
// settings that are likely to cause deploy failures later.
func DiagnoseConfig(cfg *Config) []DiagnosticWarning {
	var warnings []DiagnosticWarning
	warnings = append(warnings, diagnoseAccount(cfg)...)
	warnings = append(warnings, diagnoseGitAuth(cfg)...)
	warnings = append(warnings, diagnoseTemplateSource(cfg)...)
	return warnings
}

// diagnoseAccount checks for placeholder account IDs.
func diagnoseAccount(cfg *Config) []DiagnosticWarning {
	if cfg.ExpectedAccountID == "123456789012" {
		return []DiagnosticWarning{{
			Category: ErrCategoryConfiguration,
			Message:  envExpectedAccount + " uses the placeholder account ID 123456789012",
			Hint:     "replace with your real AWS account ID",
		}}
	}
	return nil
}

// diagnoseGitAuth checks for git credential combinations that will not work.
func diagnoseGitAuth(cfg *Config) []DiagnosticWarning {
	var warnings []DiagnosticWarning
	if cfg.GitToken != "" && cfg.GitSSHKeyPath != "" {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryConfiguration,
			Message:  "both " + envGitToken + " and " + envGitSSHKeyPath + " are set",
			Hint:     "the SSH key is used for ssh remotes and the token for https; set only the one matching " + envRepoURL,
		})
	}
	if cfg.GitToken != "" && cfg.GitUsername == "" {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryConfiguration,
			Message:  envGitToken + " is set but " + envGitUsername + " is empty",
			Hint:     "most git hosts require a username alongside the token (any non-empty value works for GitHub)",
		})
	}
	if cfg.RepoURL != "" && strings.HasPrefix(cfg.RepoURL, "git@") && cfg.GitSSHKeyPath == "" {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryConfiguration,
			Message:  envRepoURL + " is an ssh remote but " + envGitSSHKeyPath + " is not set",
			Hint:     "set " + envGitSSHKeyPath + " or use an https remote with a token",
		})
	}
	return warnings
}

// diagnoseTemplateSource checks for template source settings that survive
// poorly across restarts.
func diagnoseTemplateSource(cfg *Config) []DiagnosticWarning {
	if cfg.RepoURL == "" && strings.HasPrefix(cfg.LocalPath, "/tmp/") {
		return []DiagnosticWarning{{
			Category: ErrCategoryConfiguration,
			Message:  fmt.Sprintf("no %s set and %s points under /tmp", envRepoURL, envLocalPath),
			Hint:     "templates under /tmp disappear on reboot; set a git remote or a durable local path",
		}}
	}
	return nil
}

// FormatWarnings returns a multi-line string from a list of warnings,
// suitable for display to the user.
func FormatWarnings(warnings []DiagnosticWarning) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d diagnostic warning(s):\n", len(warnings))
	for i, w := range warnings {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, w.String())
	}
	return b.String()
}
