package cfn

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestManagerListAvailableResources(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})
	result := m.ListAvailableResources()
	if !result.Success {
		t.Fatalf("Success = false: %s", result.Error)
	}
	if !reflect.DeepEqual(result.Resources, []string{"s3"}) {
		t.Errorf("Resources = %v", result.Resources)
	}
	if result.Count != 1 {
		t.Errorf("Count = %d, want 1", result.Count)
	}
}

func TestManagerGetTemplateInfo(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})

	result := m.GetTemplateInfo("s3")
	if !result.Success {
		t.Fatalf("Success = false: %s", result.Error)
	}
	if result.Description != "Test S3 bucket" {
		t.Errorf("Description = %q", result.Description)
	}
	if !reflect.DeepEqual(result.Parameters, []string{"BucketName", "Environment"}) {
		t.Errorf("Parameters = %v", result.Parameters)
	}
	if !reflect.DeepEqual(result.Resources, []string{"Bucket", "Policy"}) {
		t.Errorf("Resources = %v", result.Resources)
	}
	if !reflect.DeepEqual(result.Outputs, []string{"BucketArn"}) {
		t.Errorf("Outputs = %v", result.Outputs)
	}
}

func TestManagerGetTemplateInfoNotFound(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})
	result := m.GetTemplateInfo("nope")
	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.Contains(result.Error, "resource type") {
		t.Errorf("Error = %q", result.Error)
	}
}

func TestManagerGetTemplateParameters(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})

	result := m.GetTemplateParameters("s3")
	if !result.Success {
		t.Fatalf("Success = false: %s", result.Error)
	}
	if !reflect.DeepEqual(result.RequiredParameters, []string{"BucketName"}) {
		t.Errorf("RequiredParameters = %v", result.RequiredParameters)
	}

	bucket, ok := result.Parameters["BucketName"]
	if !ok {
		t.Fatalf("Parameters = %v, missing BucketName", result.Parameters)
	}
	if bucket.Type != "String" {
		t.Errorf("BucketName.Type = %q", bucket.Type)
	}
	if bucket.MinLength == nil || *bucket.MinLength != 3 {
		t.Errorf("BucketName.MinLength = %v", bucket.MinLength)
	}

	env := result.Parameters["Environment"]
	if env.Default != "dev" {
		t.Errorf("Environment.Default = %v", env.Default)
	}
	if !reflect.DeepEqual(env.AllowedValues, []string{"dev", "staging", "prod"}) {
		t.Errorf("Environment.AllowedValues = %v", env.AllowedValues)
	}
}

func TestManagerValidateParameters(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})

	result := m.ValidateParameters("s3", map[string]string{"BucketName": "my-bucket"})
	if !result.Valid {
		t.Fatalf("Valid = false: %v", result.Errors)
	}

	result = m.ValidateParameters("s3", map[string]string{})
	if result.Valid {
		t.Fatal("Valid = true, want false for missing required parameter")
	}

	result = m.ValidateParameters("nope", map[string]string{})
	if result.Error == "" {
		t.Error("Error empty for unknown resource type")
	}
	if result.Success {
		t.Error("Success = true for unknown resource type")
	}
}

func TestManagerRefreshTemplates(t *testing.T) {
	m := newTestManager(t, &fakeCFNClient{})
	result := m.RefreshTemplates(context.Background())
	if !result.Success {
		t.Fatalf("Success = false: %s", result.Error)
	}
	if result.Count != 1 {
		t.Errorf("Count = %d, want 1", result.Count)
	}
}
