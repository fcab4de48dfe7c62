package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every setting the pipeline needs. Only cmd packages read the
// environment; everything else receives a Config value.
type Config struct {
	AppEnv string

	FireflyClientID     string
	FireflyClientSecret string
	FireflyBaseURL      string
	FireflyTokenURL     string
	FireflyScopes       string
	FireflyModelVersion string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	AzureModelName  string
	AzureDeployment string

	DatabaseURL string

	HTTPTimeout  time.Duration
	PollInterval time.Duration
	PollMaxWait  time.Duration
	Pacing       time.Duration
}

const (
	DefaultFireflyBaseURL  = "https://firefly-api.adobe.io"
	DefaultFireflyTokenURL = "https://ims-na1.adobelogin.com/ims/token/v3"
	DefaultFireflyScopes   = "openid,AdobeID,session,additional_info,read_organizations,firefly_api,ff_apis"
	DefaultAzureAPIVersion = "2024-04-01-preview"
)

// LoadConfig reads configuration from environment variables and applies
// defaults. Required fields are checked by Validate so that commands that do
// not talk to the services can still load a Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "production"),
		FireflyClientID:     strings.TrimSpace(os.Getenv("FFS_CLIENT_ID")),
		FireflyClientSecret: strings.TrimSpace(os.Getenv("FFS_CLIENT_SECRET")),
		FireflyBaseURL:      getEnv("FIREFLY_BASE_URL", DefaultFireflyBaseURL),
		FireflyTokenURL:     getEnv("FIREFLY_IMS_URL", DefaultFireflyTokenURL),
		FireflyScopes:       getEnv("FIREFLY_SCOPES", DefaultFireflyScopes),
		FireflyModelVersion: strings.TrimSpace(os.Getenv("FIREFLY_MODEL_VERSION")),
		AzureEndpoint:       strings.TrimSpace(os.Getenv("AZURE_ENDPOINT")),
		AzureAPIKey:         strings.TrimSpace(os.Getenv("AZURE_API_KEY")),
		AzureAPIVersion:     getEnv("AZURE_API_VERSION", DefaultAzureAPIVersion),
		AzureModelName:      strings.TrimSpace(os.Getenv("AZURE_MODEL_NAME")),
		AzureDeployment:     strings.TrimSpace(os.Getenv("AZURE_DEPLOYMENT")),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPTimeout:         time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 120)),
		PollInterval:        time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)),
		PollMaxWait:         time.Second * time.Duration(getEnvInt("POLL_MAX_WAIT_SECONDS", 0)),
		Pacing:              time.Millisecond * time.Duration(getEnvInt("PACING_MS", 1000)),
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PollMaxWait < 0 {
		return nil, fmt.Errorf("POLL_MAX_WAIT_SECONDS must not be negative")
	}
	if cfg.Pacing < 0 {
		return nil, fmt.Errorf("PACING_MS must not be negative")
	}
	return cfg, nil
}

// Validate reports every missing required variable. Scene planning needs the
// Azure settings on top of the Firefly credentials.
func (c *Config) Validate(scenePlanning bool) error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"FFS_CLIENT_ID", c.FireflyClientID},
		{"FFS_CLIENT_SECRET", c.FireflyClientSecret},
	}
	if scenePlanning {
		required = append(required, []struct {
			name  string
			value string
		}{
			{"AZURE_ENDPOINT", c.AzureEndpoint},
			{"AZURE_API_KEY", c.AzureAPIKey},
			{"AZURE_API_VERSION", c.AzureAPIVersion},
			{"AZURE_MODEL_NAME", c.AzureModelName},
			{"AZURE_DEPLOYMENT", c.AzureDeployment},
		}...)
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Scopes splits FireflyScopes on commas.
func (c *Config) Scopes() []string {
	var scopes []string
	for _, s := range strings.Split(c.FireflyScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}
