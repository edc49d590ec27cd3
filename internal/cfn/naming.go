package cfn

import (
	"fmt"
	"regexp"
	"strings"
)

// stackNamePattern is the regex for valid CloudFormation stack names:
// start with a letter, then letters, digits, and hyphens, at most 128
// characters total.
const stackNamePattern = `^[a-zA-Z][a-zA-Z0-9-]{0,127}$`

// stackNameRe is the compiled stack name pattern.
var stackNameRe = regexp.MustCompile(stackNamePattern)

// validateStackName checks whether name is a valid stack name and returns
// an error describing the problem if not.
func validateStackName(name string) error {
	if !stackNameRe.MatchString(name) {
		return fmt.Errorf("stack name %q is invalid: must match %s", name, stackNamePattern)
	}
	return nil
}

// changeSetSuffix joins the stack name and intent when deriving a change
// set name. Using the same derivation on create and describe keeps the two
// halves of the preview flow addressing the same provider artifact.
const changeSetSuffix = "-changeset-"

// changeSetName derives the provider-side change set name for a stack and
// intent, e.g. "web-stack-changeset-create".
func changeSetName(stackName string, intent Intent) string {
	return stackName + changeSetSuffix + strings.ToLower(string(intent))
}
