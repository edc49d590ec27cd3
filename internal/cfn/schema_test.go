package cfn

import (
	"errors"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, body string) *TemplateDocument {
	t.Helper()
	doc, err := ParseTemplate([]byte(body))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	return doc
}

func TestExtractSchema(t *testing.T) {
	doc := mustParse(t, `
Parameters:
  BucketName:
    Type: String
    Description: Name of the bucket
    MinLength: 3
    MaxLength: 63
    AllowedPattern: "[a-z0-9-]+"
    ConstraintDescription: lowercase letters, digits, and hyphens
  Environment:
    Type: String
    Default: dev
    AllowedValues:
      - dev
      - prod
  RetentionDays:
    Type: Number
    Default: 30
    MinValue: 1
    MaxValue: 365
  DBPassword:
    Type: String
    NoEcho: true
Resources:
  Thing:
    Type: AWS::SNS::Topic
`)

	schema, err := ExtractSchema("s3", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}

	if got, want := schema.Order, []string{"BucketName", "Environment", "RetentionDays", "DBPassword"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
	// Required lists parameters without defaults, in declaration order.
	if got, want := schema.Required, []string{"BucketName", "DBPassword"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Required = %v, want %v", got, want)
	}

	bucket := schema.Parameters["BucketName"]
	if bucket.Type != "String" {
		t.Errorf("BucketName.Type = %q", bucket.Type)
	}
	if bucket.HasDefault {
		t.Error("BucketName.HasDefault = true, want false")
	}
	if bucket.MinLength == nil || *bucket.MinLength != 3 {
		t.Errorf("BucketName.MinLength = %v, want 3", bucket.MinLength)
	}
	if bucket.MaxLength == nil || *bucket.MaxLength != 63 {
		t.Errorf("BucketName.MaxLength = %v, want 63", bucket.MaxLength)
	}
	if bucket.ConstraintDescription == "" {
		t.Error("BucketName.ConstraintDescription empty")
	}

	env := schema.Parameters["Environment"]
	if !env.HasDefault || env.Default != "dev" {
		t.Errorf("Environment default = %v (has=%v), want dev", env.Default, env.HasDefault)
	}
	if got, want := env.AllowedValues, []string{"dev", "prod"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Environment.AllowedValues = %v, want %v", got, want)
	}

	days := schema.Parameters["RetentionDays"]
	if !days.IsNumeric() {
		t.Error("RetentionDays.IsNumeric() = false")
	}
	if days.MinValue == nil || *days.MinValue != 1 {
		t.Errorf("RetentionDays.MinValue = %v, want 1", days.MinValue)
	}
	if days.MaxValue == nil || *days.MaxValue != 365 {
		t.Errorf("RetentionDays.MaxValue = %v, want 365", days.MaxValue)
	}

	if !schema.Parameters["DBPassword"].NoEcho {
		t.Error("DBPassword.NoEcho = false, want true")
	}
}

func TestExtractSchemaNoParameters(t *testing.T) {
	doc := mustParse(t, "Resources:\n  Thing:\n    Type: AWS::SNS::Topic\n")
	schema, err := ExtractSchema("s3", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}
	if len(schema.Parameters) != 0 || len(schema.Required) != 0 {
		t.Errorf("schema not empty: %+v", schema)
	}
}

func TestExtractSchemaStringBounds(t *testing.T) {
	// CloudFormation accepts quoted-string numeric fields.
	doc := mustParse(t, `
Parameters:
  Name:
    Type: String
    MinLength: "2"
    MaxLength: "10"
Resources:
  Thing:
    Type: AWS::SNS::Topic
`)
	schema, err := ExtractSchema("s3", doc)
	if err != nil {
		t.Fatalf("ExtractSchema: %v", err)
	}
	spec := schema.Parameters["Name"]
	if spec.MinLength == nil || *spec.MinLength != 2 || spec.MaxLength == nil || *spec.MaxLength != 10 {
		t.Errorf("bounds = [%v, %v], want [2, 10]", spec.MinLength, spec.MaxLength)
	}
}

func TestExtractSchemaErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantParam string
	}{
		{
			name:      "section is a sequence",
			body:      "Parameters:\n  - a\nResources:\n  T:\n    Type: AWS::SNS::Topic\n",
			wantParam: "",
		},
		{
			name:      "entry is a scalar",
			body:      "Parameters:\n  Name: just-a-string\nResources:\n  T:\n    Type: AWS::SNS::Topic\n",
			wantParam: "Name",
		},
		{
			name:      "entry missing Type",
			body:      "Parameters:\n  Name:\n    Description: no type here\nResources:\n  T:\n    Type: AWS::SNS::Topic\n",
			wantParam: "Name",
		},
		{
			name:      "bad MinLength",
			body:      "Parameters:\n  Name:\n    Type: String\n    MinLength: abc\nResources:\n  T:\n    Type: AWS::SNS::Topic\n",
			wantParam: "Name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, tc.body)
			_, err := ExtractSchema("s3", doc)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("error %T is not a *SchemaError", err)
			}
			if schemaErr.ResourceType != "s3" {
				t.Errorf("ResourceType = %q, want s3", schemaErr.ResourceType)
			}
			if schemaErr.Parameter != tc.wantParam {
				t.Errorf("Parameter = %q, want %q", schemaErr.Parameter, tc.wantParam)
			}
		})
	}
}
