package config

import (
	"context"
	"os"
	"testing"
)

func TestEnvVarProviderReturnsSetVariables(t *testing.T) {
	t.Setenv("MENTORSHIP_TEST_SECRET_A", "value-alpha")
	os.Unsetenv("MENTORSHIP_TEST_SECRET_MISSING")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"MENTORSHIP_TEST_SECRET_A", "MENTORSHIP_TEST_SECRET_MISSING"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("expected 1 result, got %v", result)
	}
	if got := result["MENTORSHIP_TEST_SECRET_A"]; got != "value-alpha" {
		t.Errorf("result = %q, want value-alpha", got)
	}
}

func TestNewSecretProviderSelectsByEnvironment(t *testing.T) {
	if _, ok := NewSecretProvider("local", "us-east-1", "").(*EnvVarProvider); !ok {
		t.Error("local environment should use EnvVarProvider")
	}
	if _, ok := NewSecretProvider("prod", "us-east-1", "").(*SSMProvider); !ok {
		t.Error("prod environment should use SSMProvider")
	}
}
