package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

var sample = []Result{
	{FlagKey: "dummy", Type: "bool", Value: true, Reason: "TARGETING_MATCH"},
	{FlagKey: "theme", Type: "object", Value: map[string]any{"color": "blue"}, Variant: "b", Reason: "TARGETING_MATCH"},
	{FlagKey: "dummy2", Type: "bool", Value: false, Reason: "DEFAULT", ErrorCode: "FLAG_NOT_FOUND", ErrorMessage: "flag dummy2 not found"},
}

func TestPrintResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintResults(&buf, sample, FormatJSON); err != nil {
		t.Fatalf("PrintResults() failed: %v", err)
	}

	var out struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(out.Results))
	}
	if out.Results[2].ErrorCode != "FLAG_NOT_FOUND" {
		t.Errorf("Expected FLAG_NOT_FOUND, got %q", out.Results[2].ErrorCode)
	}
	if want := map[string]any{"color": "blue"}; !reflect.DeepEqual(out.Results[1].Value, want) {
		t.Errorf("Expected %v, got %v", want, out.Results[1].Value)
	}
}

func TestPrintResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintResult(&buf, sample[1], FormatYAML); err != nil {
		t.Fatalf("PrintResult() failed: %v", err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid YAML output: %v", err)
	}
	if out["flagKey"] != "theme" || out["variant"] != "b" {
		t.Errorf("Unexpected YAML fields: %v", out)
	}
	if _, ok := out["errorCode"]; ok {
		t.Error("Expected errorCode to be omitted")
	}
}

func TestPrintResults_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintResults(&buf, sample, FormatTable); err != nil {
		t.Fatalf("PrintResults() failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"dummy2", `{"color":"blue"}`, "FLAG_NOT_FOUND"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %s:\n%s", want, out)
		}
	}
}

func TestPrintResults_UnsupportedFormat(t *testing.T) {
	err := PrintResults(&bytes.Buffer{}, sample, OutputFormat("xml"))
	if err == nil || err.Error() != "unsupported format: xml" {
		t.Errorf("Expected unsupported format error, got %v", err)
	}
}

func TestBuildContext(t *testing.T) {
	ec, err := BuildContext(ContextFlags{
		TargetingKey: "u1",
		Groups:       []string{"company=acme", "team=core"},
		Props:        []string{"email=u1@example.com", "address.city=Lisbon", "address.country=PT"},
		GroupProps:   []string{"company.tier=gold", "company.plan=pro"},
	})
	if err != nil {
		t.Fatalf("BuildContext() failed: %v", err)
	}

	want := provider.EvaluationContext{
		TargetingKey: "u1",
		Groups:       map[string]any{"company": "acme", "team": "core"},
		PersonProperties: map[string]any{
			"email":   "u1@example.com",
			"address": map[string]any{"city": "Lisbon", "country": "PT"},
		},
		GroupProperties: map[string]any{
			"company": map[string]any{"tier": "gold", "plan": "pro"},
		},
	}
	if !reflect.DeepEqual(ec, want) {
		t.Errorf("BuildContext() = %+v, want %+v", ec, want)
	}
}

func TestBuildContext_Errors(t *testing.T) {
	tests := []struct {
		name  string
		flags ContextFlags
	}{
		{"group without value", ContextFlags{Groups: []string{"company"}}},
		{"empty prop name", ContextFlags{Props: []string{"=x"}}},
		{"group prop without type", ContextFlags{GroupProps: []string{"tier=gold"}}},
		{"prop nested under scalar", ContextFlags{Props: []string{"address=x", "address.city=y"}}},
		{"scalar over nested prop", ContextFlags{Props: []string{"address.city=y", "address=x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildContext(tt.flags); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseDefault(t *testing.T) {
	tests := []struct {
		typ     string
		raw     string
		want    any
		wantErr bool
	}{
		{"bool", "", false, false},
		{"boolean", "true", true, false},
		{"bool", "maybe", nil, true},
		{"string", "control", "control", false},
		{"number", "", 0.0, false},
		{"number", "2.5", 2.5, false},
		{"number", "lots", nil, true},
		{"object", `{"a":"b"}`, map[string]any{"a": "b"}, false},
		{"object", "", nil, false},
		{"object", "{", nil, true},
		{"date", "", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseDefault(tt.typ, tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDefault(%s, %q) expected error", tt.typ, tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDefault(%s, %q) failed: %v", tt.typ, tt.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseDefault(%s, %q) = %#v, want %#v", tt.typ, tt.raw, got, tt.want)
		}
	}
}

func TestResolveProfile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigPathEnv, filepath.Join(dir, "config.yaml"))
	t.Setenv("POSTHOG_HOST", "")
	t.Setenv("POSTHOG_API_KEY", "")
	t.Setenv("POSTHOG_PERSONAL_API_KEY", "")

	_, _, err := ResolveProfile("", Profile{})
	if err == nil || !strings.Contains(err.Error(), "profile 'default' not found") {
		t.Fatalf("Expected missing profile error, got %v", err)
	}

	if err := SaveConfig(&Config{
		DefaultProfile: "eu",
		Profiles: map[string]Profile{
			"eu": {Host: "https://eu.i.posthog.com", APIKey: "phc_file", PersonalAPIKey: "phx_file"},
		},
	}); err != nil {
		t.Fatalf("SaveConfig() failed: %v", err)
	}

	p, name, err := ResolveProfile("", Profile{})
	if err != nil {
		t.Fatalf("ResolveProfile() failed: %v", err)
	}
	if name != "eu" || p.Backend != "sdk" || p.APIKey != "phc_file" {
		t.Errorf("Unexpected profile %q: %+v", name, p)
	}

	t.Setenv("POSTHOG_API_KEY", "phc_env")
	p, _, err = ResolveProfile("eu", Profile{Backend: "decide"})
	if err != nil {
		t.Fatalf("ResolveProfile() failed: %v", err)
	}
	if p.APIKey != "phc_env" || p.Backend != "decide" {
		t.Errorf("Expected env key and flag backend, got %+v", p)
	}

	p, _, err = ResolveProfile("eu", Profile{APIKey: "phc_flag"})
	if err != nil {
		t.Fatalf("ResolveProfile() failed: %v", err)
	}
	if p.APIKey != "phc_flag" {
		t.Errorf("Expected flag key to win, got %q", p.APIKey)
	}

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestResolveProfile_FromEnvOnly(t *testing.T) {
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("POSTHOG_API_KEY", "phc_env")
	t.Setenv("POSTHOG_PERSONAL_API_KEY", "phx_env")

	p, _, err := ResolveProfile("", Profile{})
	if err != nil {
		t.Fatalf("ResolveProfile() failed: %v", err)
	}
	if p.PersonalAPIKey != "phx_env" {
		t.Errorf("Expected phx_env, got %q", p.PersonalAPIKey)
	}
}

func TestProfileRedacted(t *testing.T) {
	p := Profile{APIKey: "phc_1234567890", PersonalAPIKey: "short"}.Redacted()
	if p.APIKey != "phc_****7890" {
		t.Errorf("APIKey = %q, want phc_****7890", p.APIKey)
	}
	if p.PersonalAPIKey != "****" {
		t.Errorf("PersonalAPIKey = %q, want ****", p.PersonalAPIKey)
	}
}
