package main

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// resetFlags restores global flag state after each test.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct{ url, token, fmt, company, location, profile string }{
		flagURL, flagToken, flagFmt, flagCompany, flagLocation, flagProfile,
	}
	t.Cleanup(func() {
		flagURL = orig.url
		flagToken = orig.token
		flagFmt = orig.fmt
		flagCompany = orig.company
		flagLocation = orig.location
		flagProfile = orig.profile
	})
	flagURL = defaultURL
	flagToken = ""
	flagCompany = ""
	flagLocation = ""
	flagProfile = ""
}

// isolate points HOME at an empty temp dir and clears the LABOPS_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	resetFlags(t)
	for _, k := range []string{"LABOPS_URL", "LABOPS_TOKEN", "LABOPS_COMPANY", "LABOPS_LOCATION"} {
		t.Setenv(k, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".labops")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

const profilesYAML = `
active_profile: staging
profiles:
  default:
    url: http://default:8080
    token: default-token
  staging:
    url: http://staging:9090
    token: staging-token
    company_id: c1
    location_id: l1
`

// TestResolveConfigEnv verifies that LABOPS_* variables fill unset flags.
func TestResolveConfigEnv(t *testing.T) {
	isolate(t)
	t.Setenv("LABOPS_URL", "http://env-server:9090")
	t.Setenv("LABOPS_TOKEN", "env-token")
	t.Setenv("LABOPS_COMPANY", "c9")

	resolveConfig()

	if flagURL != "http://env-server:9090" {
		t.Errorf("flagURL: got %q", flagURL)
	}
	if flagToken != "env-token" {
		t.Errorf("flagToken: got %q", flagToken)
	}
	if flagCompany != "c9" {
		t.Errorf("flagCompany: got %q", flagCompany)
	}
}

// TestResolveConfigFlagTakesPrecedenceOverEnv verifies that an explicit flag
// value is not overridden by the environment.
func TestResolveConfigFlagTakesPrecedenceOverEnv(t *testing.T) {
	isolate(t)
	t.Setenv("LABOPS_URL", "http://env-server:9090")

	flagURL = "http://explicit-flag:1234"
	resolveConfig()

	if flagURL != "http://explicit-flag:1234" {
		t.Errorf("explicit flag should win; got %q", flagURL)
	}
}

// TestResolveConfigActiveProfile verifies that active_profile selects the profile.
func TestResolveConfigActiveProfile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, profilesYAML)

	resolveConfig()

	if flagURL != "http://staging:9090" || flagToken != "staging-token" {
		t.Errorf("expected staging profile, got url=%q token=%q", flagURL, flagToken)
	}
	if flagCompany != "c1" || flagLocation != "l1" {
		t.Errorf("expected profile scope, got %q/%q", flagCompany, flagLocation)
	}
}

// TestResolveConfigProfileFlag verifies that --profile overrides active_profile.
func TestResolveConfigProfileFlag(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, profilesYAML)

	flagProfile = "default"
	resolveConfig()

	if flagURL != "http://default:8080" || flagToken != "default-token" {
		t.Errorf("expected default profile, got url=%q token=%q", flagURL, flagToken)
	}
}

// TestResolveConfigEnvNotOverriddenByFile verifies that env vars take
// precedence over config file values.
func TestResolveConfigEnvNotOverriddenByFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, profilesYAML)
	t.Setenv("LABOPS_TOKEN", "env-wins")

	resolveConfig()

	if flagToken != "env-wins" {
		t.Errorf("flagToken should be env value; got %q", flagToken)
	}
}

// TestResolveConfigMissingOrInvalidFile verifies that an absent or malformed
// config file leaves the defaults alone.
func TestResolveConfigMissingOrInvalidFile(t *testing.T) {
	home := isolate(t)
	resolveConfig()
	if flagURL != defaultURL || flagToken != "" {
		t.Errorf("defaults changed without config: url=%q token=%q", flagURL, flagToken)
	}

	writeConfig(t, home, ":::not-yaml:::")
	resolveConfig()
	if flagURL != defaultURL {
		t.Errorf("flagURL should stay default on bad YAML; got %q", flagURL)
	}
}

// TestSaveProfileMergesAndRestrictsPermissions verifies that saveProfile keeps
// other profiles and writes the file owner-only.
func TestSaveProfileMergesAndRestrictsPermissions(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, profilesYAML)

	path, err := saveProfile(func(p *configProfile) { p.Token = "fresh" })
	if err != nil {
		t.Fatalf("saveProfile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600, got %o", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}

	if got := cfg.Profiles["staging"]; got.Token != "fresh" || got.URL != "http://staging:9090" {
		t.Errorf("staging profile not merged: %+v", got)
	}
	if got := cfg.Profiles["default"]; got.Token != "default-token" {
		t.Errorf("default profile changed: %+v", got)
	}
}

// TestSaveProfileCreatesFile verifies the first login creates a default profile.
func TestSaveProfileCreatesFile(t *testing.T) {
	isolate(t)

	path, err := saveProfile(func(p *configProfile) {
		p.URL = "http://lab:8080"
		p.Token = "tok"
	})
	if err != nil {
		t.Fatalf("saveProfile: %v", err)
	}

	cfg, err := readConfigFile()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if cfg.ActiveProfile != "default" || cfg.Profiles["default"].Token != "tok" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
