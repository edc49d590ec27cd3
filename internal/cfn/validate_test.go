package cfn

import (
	"reflect"
	"strings"
	"testing"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	doc := mustParse(t, `
Parameters:
  BucketName:
    Type: String
    MinLength: 3
    MaxLength: 63
    AllowedPattern: "[a-z0-9-]+"
  Environment:
    Type: String
    Default: dev
    AllowedValues:
      - dev
      - staging
      - prod
  RetentionDays:
    Type: Number
    Default: 30
    MinValue: 1
    MaxValue: 365
Resources:
  Thing:
    Type: AWS::SNS::Topic
`)
	schema, err := ExtractSchema("s3", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}
	return schema
}

func TestValidateAllValid(t *testing.T) {
	result := ValidateAgainstSchema(testSchema(t), map[string]string{
		"BucketName":    "my-bucket",
		"Environment":   "prod",
		"RetentionDays": "90",
	})
	if !result.Valid {
		t.Fatalf("Valid = false, errors: %v", result.Errors)
	}
	if len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Errorf("errors = %v, warnings = %v, want none", result.Errors, result.Warnings)
	}
	if result.Message != "Parameters are valid" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	result := ValidateAgainstSchema(testSchema(t), map[string]string{})
	if result.Valid {
		t.Fatal("Valid = true, want false")
	}
	// Defaulted parameters may be omitted; only BucketName is required.
	want := []string{"BucketName: missing required parameter"}
	if !reflect.DeepEqual(result.Errors, want) {
		t.Errorf("Errors = %v, want %v", result.Errors, want)
	}
}

func TestValidateUnknownKeysWarn(t *testing.T) {
	result := ValidateAgainstSchema(testSchema(t), map[string]string{
		"BucketName": "my-bucket",
		"Zzz":        "1",
		"Aaa":        "2",
	})
	if !result.Valid {
		t.Fatalf("unknown keys must not block: errors = %v", result.Errors)
	}
	want := []string{"Aaa: unknown parameter", "Zzz: unknown parameter"}
	if !reflect.DeepEqual(result.Warnings, want) {
		t.Errorf("Warnings = %v, want %v", result.Warnings, want)
	}
}

func TestValidateConstraints(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr string
	}{
		{
			name:    "value not in allowed values",
			values:  map[string]string{"BucketName": "my-bucket", "Environment": "qa"},
			wantErr: "Environment: value not in allowed values (dev, staging, prod)",
		},
		{
			name:    "pattern mismatch",
			values:  map[string]string{"BucketName": "My_Bucket"},
			wantErr: "BucketName: does not match allowed pattern [a-z0-9-]+",
		},
		{
			name:    "too short",
			values:  map[string]string{"BucketName": "ab"},
			wantErr: "BucketName: length out of bounds [3, 63]",
		},
		{
			name:    "number above max",
			values:  map[string]string{"BucketName": "my-bucket", "RetentionDays": "9000"},
			wantErr: "RetentionDays: value out of range [1, 365]",
		},
		{
			name:    "not a number",
			values:  map[string]string{"BucketName": "my-bucket", "RetentionDays": "soon"},
			wantErr: "RetentionDays: value out of range [1, 365]: not a number",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateAgainstSchema(testSchema(t), tc.values)
			if result.Valid {
				t.Fatal("Valid = true, want false")
			}
			found := false
			for _, e := range result.Errors {
				if e == tc.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("Errors = %v, want to contain %q", result.Errors, tc.wantErr)
			}
		})
	}
}

func TestValidateShortCircuitsPerKey(t *testing.T) {
	// A value violating several constraints yields exactly one error, from
	// the first failing rule (pattern before length here).
	result := ValidateAgainstSchema(testSchema(t), map[string]string{
		"BucketName": "_", // fails pattern and MinLength
	})
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "does not match allowed pattern") {
		t.Errorf("first error = %q, want pattern violation", result.Errors[0])
	}
}

func TestValidatePatternAnchored(t *testing.T) {
	// AllowedPattern must match the whole value, not a substring.
	result := ValidateAgainstSchema(testSchema(t), map[string]string{
		"BucketName": "ok-part!!",
	})
	if result.Valid {
		t.Fatal("partial pattern match accepted")
	}
}

func TestValidatePatternAlternationAnchored(t *testing.T) {
	// Anchoring must scope over top-level alternation: "yes|no" accepts
	// exactly "yes" or "no", not any value starting with yes or ending
	// with no.
	doc := mustParse(t, `
Parameters:
  EnableVersioning:
    Type: String
    AllowedPattern: "yes|no"
Resources:
  Thing:
    Type: AWS::SNS::Topic
`)
	schema, err := ExtractSchema("s3", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}

	tests := []struct {
		value string
		valid bool
	}{
		{"yes", true},
		{"no", true},
		{"yes-sir", false},
		{"oh-no", false},
		{"", false},
	}
	for _, tc := range tests {
		result := ValidateAgainstSchema(schema, map[string]string{"EnableVersioning": tc.value})
		if result.Valid != tc.valid {
			t.Errorf("value %q: Valid = %v, want %v (errors: %v)",
				tc.value, result.Valid, tc.valid, result.Errors)
		}
	}
}

func TestValidateLengthCountsCharacters(t *testing.T) {
	doc := mustParse(t, `
Parameters:
  DisplayName:
    Type: String
    MinLength: 3
    MaxLength: 5
Resources:
  Thing:
    Type: AWS::SNS::Topic
`)
	schema, err := ExtractSchema("sns", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		// "ééééé" is five characters but ten bytes.
		{"multibyte at max", "ééééé", true},
		{"multibyte below min", "éé", false},
		{"multibyte above max", "éééééé", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateAgainstSchema(schema, map[string]string{"DisplayName": tc.value})
			if result.Valid != tc.valid {
				t.Errorf("value %q: Valid = %v, want %v (errors: %v)",
					tc.value, result.Valid, tc.valid, result.Errors)
			}
		})
	}
}

func TestValidateErrorNameFirstToken(t *testing.T) {
	result := ValidateAgainstSchema(testSchema(t), map[string]string{
		"Environment": "qa",
	})
	for _, msg := range append(result.Errors, result.Warnings...) {
		name := strings.SplitN(msg, ":", 2)[0]
		if strings.ContainsAny(name, " ") {
			t.Errorf("message %q does not start with a bare parameter name", msg)
		}
	}
}
