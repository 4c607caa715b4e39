package models

// Config represents the service configuration, loaded from config.yaml with
// environment overrides applied in cmd/server.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Dolibarr DolibarrConfig `yaml:"dolibarr"`
	AI       AIConfig       `yaml:"ai"`
	Auth     AuthConfig     `yaml:"auth"`
}

// DolibarrConfig holds the ERP endpoint settings.
type DolibarrConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// AIConfig selects and configures the extraction engine.
type AIConfig struct {
	// DefaultProvider is "gemini" or "openai".
	DefaultProvider string       `yaml:"default_provider"`
	Gemini          GeminiConfig `yaml:"gemini"`
	OpenAI          OpenAIConfig `yaml:"openai"`
}

// GeminiKey is one (API key, model) pair. Model falls back to the first
// entry of the built-in model rotation when empty.
type GeminiKey struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model,omitempty"`
}

// GeminiConfig: up to 3 independent keys for load distribution and
// rate-limit failover.
type GeminiConfig struct {
	Keys []GeminiKey `yaml:"keys"`
}

// OpenAIConfig for the OpenAI-compatible fallback vision provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// AuthConfig: JWT auth is enabled only when Secret is non-empty. Username
// and Password are the credentials accepted by the login endpoint.
type AuthConfig struct {
	Secret   string `yaml:"jwt_secret"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}
