package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestPlannerConfig_DefaultIcons(t *testing.T) {
	cfg := PlannerConfig{Root: "/tmp/p"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	icons := cfg.Icons()
	if icons.Card != "📃" || icons.Deck != "🗃️" {
		t.Errorf("icons = %+v", icons)
	}
}

func TestPlannerConfig_EmptyRootAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Planner.Root = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty root should be valid: %v", err)
	}
}

func TestPlannerConfig_IconTooLong(t *testing.T) {
	cfg := PlannerConfig{CardIcon: "this is not an icon"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("long icon should fail validation")
	}
}

func TestIndexConfig_DefaultDSN(t *testing.T) {
	cfg := IndexConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.DSN == "" {
		t.Error("empty DSN should default to the in-memory index")
	}
}

func TestHTTPConfig_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("out of range port should fail")
	}
}
