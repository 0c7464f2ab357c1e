package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Env           string `yaml:"env" env:"DEALSCOUT_ENV" env-default:"local"`
	RespectRobots bool   `yaml:"respect_robots" env:"DEALSCOUT_RESPECT_ROBOTS" env-default:"true"`

	Provider   ProviderConfig   `yaml:"provider"`
	Session    SessionConfig    `yaml:"session"`
	Challenge  ChallengeConfig  `yaml:"challenge"`
	Navigation NavigationConfig `yaml:"navigation"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Run        RunConfig        `yaml:"run"`
	Store      StoreConfig      `yaml:"store"`
	HTTP       HTTPConfig       `yaml:"http"`
	Proxy      ProxyConfig      `yaml:"proxy"`
}

// ProviderConfig selects where browser sessions come from.
type ProviderConfig struct {
	Kind                 string `yaml:"kind" env:"DEALSCOUT_PROVIDER" env-default:"browserbase"` // "browserbase", "local"
	BrowserbaseAPIKey    string `yaml:"browserbase_api_key" env:"BROWSERBASE_API_KEY"`
	BrowserbaseProjectID string `yaml:"browserbase_project_id" env:"BROWSERBASE_PROJECT_ID"`
	BrowserbaseBaseURL   string `yaml:"browserbase_base_url" env:"BROWSERBASE_BASE_URL" env-default:"https://api.browserbase.com"`
	Headless             bool   `yaml:"headless" env:"DEALSCOUT_HEADLESS" env-default:"true"`
}

type SessionConfig struct {
	Attempts   int           `yaml:"attempts" env:"DEALSCOUT_SESSION_ATTEMPTS" env-default:"3"`
	Backoff    time.Duration `yaml:"backoff" env:"DEALSCOUT_SESSION_BACKOFF" env-default:"30s"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"DEALSCOUT_SESSION_RETRY_DELAY" env-default:"5s"`
}

type ChallengeConfig struct {
	Interval time.Duration `yaml:"interval" env:"DEALSCOUT_CHALLENGE_INTERVAL" env-default:"15s"`
	Attempts int           `yaml:"attempts" env:"DEALSCOUT_CHALLENGE_ATTEMPTS" env-default:"8"`
}

type NavigationConfig struct {
	Timeout     time.Duration `yaml:"timeout" env:"DEALSCOUT_NAV_TIMEOUT" env-default:"30s"`
	SortTimeout time.Duration `yaml:"sort_timeout" env:"DEALSCOUT_SORT_TIMEOUT" env-default:"5s"`
}

type ExtractionConfig struct {
	Chain           []string `yaml:"chain" env:"DEALSCOUT_EXTRACT_CHAIN" env-separator:"," env-default:"ai,jsonld,heuristic"`
	ScanLimit       int      `yaml:"scan_limit" env:"DEALSCOUT_SCAN_LIMIT" env-default:"2000"`
	MaxItems        int      `yaml:"max_items" env:"DEALSCOUT_MAX_ITEMS" env-default:"40"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string   `yaml:"anthropic_model" env:"DEALSCOUT_AI_MODEL" env-default:"claude-sonnet-4-20250514"`
}

type PricingConfig struct {
	MarkupMultiplier float64 `yaml:"markup_multiplier" env:"DEALSCOUT_MARKUP_MULTIPLIER" env-default:"1.4"`
}

type RunConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent" env:"DEALSCOUT_MAX_CONCURRENT" env-default:"2"`
	RatePerSecond float64 `yaml:"rate_per_second" env:"DEALSCOUT_RATE_PER_SECOND" env-default:"1"`
	RateBurst     int     `yaml:"rate_burst" env:"DEALSCOUT_RATE_BURST" env-default:"2"`
	DelayProfile  string  `yaml:"delay_profile" env:"DEALSCOUT_DELAY_PROFILE" env-default:"normal"` // "cautious", "normal", "aggressive"
	DefaultCap    float64 `yaml:"default_cap" env:"DEALSCOUT_DEFAULT_CAP" env-default:"150"`
}

// StoreConfig picks the record store. Kind "" disables persistence.
type StoreConfig struct {
	Kind             string `yaml:"kind" env:"DEALSCOUT_STORE"` // "notion", "postgres"
	NotionAPIKey     string `yaml:"notion_api_key" env:"NOTION_API_KEY"`
	NotionDatabaseID string `yaml:"notion_database_id" env:"NOTION_DATABASE_ID"`
	DatabaseURL      string `yaml:"database_url" env:"DATABASE_URL"`
}

type HTTPConfig struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"8080"`
	APIKey      string        `yaml:"api_key" env:"DEALSCOUT_API_KEY"`
	Timeout     time.Duration `yaml:"timeout" env:"DEALSCOUT_HTTP_TIMEOUT" env-default:"10m"`
	ShopPerMin  float64       `yaml:"shop_per_min" env:"DEALSCOUT_SHOP_PER_MIN" env-default:"6"`
	CORSOrigins []string      `yaml:"cors_origins" env:"DEALSCOUT_CORS_ORIGINS" env-separator:"," env-default:"*"`
}

type ProxyConfig struct {
	Mode           string `yaml:"mode" env:"DEALSCOUT_PROXY_MODE" env-default:"direct"` // "decodo", "custom", "direct"
	DecodoUsername string `yaml:"decodo_username" env:"DECODO_USERNAME"`
	DecodoPassword string `yaml:"decodo_password" env:"DECODO_PASSWORD"`
	DecodoCountry  string `yaml:"decodo_country" env:"DECODO_COUNTRY" env-default:"us"`
	DecodoCity     string `yaml:"decodo_city" env:"DECODO_CITY"`
	File           string `yaml:"file" env:"DEALSCOUT_PROXIES"`
}

// Load reads .env (if present), then the optional YAML file, then the
// environment. Flags are applied on top by the caller.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// Default returns tag defaults overlaid with the process environment, without
// touching .env files.
func Default() *Config {
	var cfg Config
	_ = cleanenv.ReadEnv(&cfg)
	return &cfg
}
