package profile

import (
	"os"
	"testing"
)

func TestProfileDefaults(t *testing.T) {
	clearCampfireEnvVars()

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"ProviderBaseURL default", "https://api.openai.com/v1", profile.ProviderBaseURL},
		{"ChatModel default", "gpt-4o", profile.ChatModel},
		{"Agents empty by default", "", profile.Agents},
		{"DefaultAgent empty by default", "", profile.DefaultAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.MaxStreams != 8 {
		t.Errorf("MaxStreams default: expected 8, got %d", profile.MaxStreams)
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearCampfireEnvVars()

	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "CAMPFIRE_PROVIDER_API_KEY",
			envVar:   "CAMPFIRE_PROVIDER_API_KEY",
			envValue: "sk-test-key",
			field:    func(p *Profile) string { return p.ProviderAPIKey },
			expected: "sk-test-key",
		},
		{
			name:     "CAMPFIRE_PROVIDER_BASE_URL",
			envVar:   "CAMPFIRE_PROVIDER_BASE_URL",
			envValue: "http://localhost:8080/v1",
			field:    func(p *Profile) string { return p.ProviderBaseURL },
			expected: "http://localhost:8080/v1",
		},
		{
			name:     "CAMPFIRE_CHAT_MODEL",
			envVar:   "CAMPFIRE_CHAT_MODEL",
			envValue: "gpt-4o-mini",
			field:    func(p *Profile) string { return p.ChatModel },
			expected: "gpt-4o-mini",
		},
		{
			name:     "CAMPFIRE_AGENTS",
			envVar:   "CAMPFIRE_AGENTS",
			envValue: "camper=asst_abc,astronomy=asst_def",
			field:    func(p *Profile) string { return p.Agents },
			expected: "camper=asst_abc,astronomy=asst_def",
		},
		{
			name:     "CAMPFIRE_DEFAULT_AGENT",
			envVar:   "CAMPFIRE_DEFAULT_AGENT",
			envValue: "camper",
			field:    func(p *Profile) string { return p.DefaultAgent },
			expected: "camper",
		},
		{
			name:     "CAMPFIRE_SECRET",
			envVar:   "CAMPFIRE_SECRET",
			envValue: "super-secret",
			field:    func(p *Profile) string { return p.Secret },
			expected: "super-secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCampfireEnvVars()
			os.Setenv(tt.envVar, tt.envValue)
			defer os.Unsetenv(tt.envVar)

			profile := &Profile{}
			profile.FromEnv()

			if actual := tt.field(profile); actual != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, actual)
			}
		})
	}
}

func TestIsOAuthEnabled(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
		expected     bool
	}{
		{"both set", "id", "secret", true},
		{"missing secret", "id", "", false},
		{"missing id", "", "secret", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{GoogleClientID: tt.clientID, GoogleClientSecret: tt.clientSecret}
			if p.IsOAuthEnabled() != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, p.IsOAuthEnabled())
			}
		})
	}
}

func TestIsDev(t *testing.T) {
	for mode, expected := range map[string]bool{"prod": false, "dev": true, "demo": true} {
		p := &Profile{Mode: mode}
		if p.IsDev() != expected {
			t.Errorf("mode %s: expected IsDev=%v", mode, expected)
		}
	}
}

func clearCampfireEnvVars() {
	vars := []string{
		"CAMPFIRE_PROVIDER_API_KEY",
		"CAMPFIRE_PROVIDER_BASE_URL",
		"CAMPFIRE_CHAT_MODEL",
		"CAMPFIRE_AGENTS",
		"CAMPFIRE_DEFAULT_AGENT",
		"CAMPFIRE_SECRET",
		"CAMPFIRE_GOOGLE_CLIENT_ID",
		"CAMPFIRE_GOOGLE_CLIENT_SECRET",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
