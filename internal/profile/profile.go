package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where campfire stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of your campfire instance.
	InstanceURL string
	// Secret signs session tokens. Required in prod.
	Secret string

	// Provider configuration
	ProviderAPIKey  string // CAMPFIRE_PROVIDER_API_KEY
	ProviderBaseURL string // CAMPFIRE_PROVIDER_BASE_URL (default: https://api.openai.com/v1)
	ChatModel       string // CAMPFIRE_CHAT_MODEL (default: gpt-4o)

	// Agents maps selector names to provider assistant IDs, serialized as
	// "name=asst_id,name=asst_id". DefaultAgent names the selector used when
	// a request supplies none.
	Agents       string // CAMPFIRE_AGENTS
	DefaultAgent string // CAMPFIRE_DEFAULT_AGENT

	// MaxStreams caps concurrent provider generations.
	MaxStreams int64 // CAMPFIRE_MAX_STREAMS (default: 8)

	// Google OAuth configuration
	GoogleClientID     string // CAMPFIRE_GOOGLE_CLIENT_ID
	GoogleClientSecret string // CAMPFIRE_GOOGLE_CLIENT_SECRET
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsOAuthEnabled returns true if Google OAuth sign-in is configured.
func (p *Profile) IsOAuthEnabled() bool {
	return p.GoogleClientID != "" && p.GoogleClientSecret != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ProviderAPIKey = os.Getenv("CAMPFIRE_PROVIDER_API_KEY")
	p.ProviderBaseURL = getEnvOrDefault("CAMPFIRE_PROVIDER_BASE_URL", "https://api.openai.com/v1")
	p.ChatModel = getEnvOrDefault("CAMPFIRE_CHAT_MODEL", "gpt-4o")
	p.Agents = os.Getenv("CAMPFIRE_AGENTS")
	p.DefaultAgent = os.Getenv("CAMPFIRE_DEFAULT_AGENT")
	p.GoogleClientID = os.Getenv("CAMPFIRE_GOOGLE_CLIENT_ID")
	p.GoogleClientSecret = os.Getenv("CAMPFIRE_GOOGLE_CLIENT_SECRET")
	if p.Secret == "" {
		p.Secret = os.Getenv("CAMPFIRE_SECRET")
	}
	if p.MaxStreams == 0 {
		p.MaxStreams = 8
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "campfire")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/campfire"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("campfire_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.Mode == "prod" && p.Secret == "" {
		return errors.New("session secret is required in prod mode, set CAMPFIRE_SECRET")
	}

	return nil
}
