package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Search and program-query backends.
const (
	BackendDatabase = "database"
	BackendAlgolia  = "algolia"
	BackendGraphQL  = "graphql"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	AllowOrigins    string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	EventsSubject   string
	JWTSecret       string
	SearchBackend   string
	SearchPageSize  int
	SearchCacheTTL  time.Duration
	SearchDebounce  time.Duration
	AlgoliaAppID    string
	AlgoliaAPIKey   string
	AlgoliaBaseURL  string
	AlgoliaPrefix   string
	ProgramsSource  string
	GraphQLURL      string
	HTTPTimeout     time.Duration
	HTTPRetryMax    int
	SeedEnabled     bool
	SeedToken       string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Nest API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("events.subject", "nest.program")
	v.SetDefault("search.backend", BackendDatabase)
	v.SetDefault("search.page_size", 25)
	v.SetDefault("search.cache_ttl", "5m")
	v.SetDefault("search.debounce", "750ms")
	v.SetDefault("algolia.base_url", "")
	v.SetDefault("algolia.index_prefix", "")
	v.SetDefault("programs.source", BackendDatabase)
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.retry_max", 3)
	v.SetDefault("seed.enabled", false)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"search.cache_ttl", "search.debounce", "http.timeout", "rate_limit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		AllowOrigins:    v.GetString("app.allow_origins"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventsSubject:   v.GetString("events.subject"),
		JWTSecret:       v.GetString("jwt.secret"),
		SearchBackend:   strings.ToLower(v.GetString("search.backend")),
		SearchPageSize:  v.GetInt("search.page_size"),
		SearchCacheTTL:  durations["search.cache_ttl"],
		SearchDebounce:  durations["search.debounce"],
		AlgoliaAppID:    v.GetString("algolia.app_id"),
		AlgoliaAPIKey:   v.GetString("algolia.api_key"),
		AlgoliaBaseURL:  v.GetString("algolia.base_url"),
		AlgoliaPrefix:   v.GetString("algolia.index_prefix"),
		ProgramsSource:  strings.ToLower(v.GetString("programs.source")),
		GraphQLURL:      v.GetString("graphql.url"),
		HTTPTimeout:     durations["http.timeout"],
		HTTPRetryMax:    v.GetInt("http.retry_max"),
		SeedEnabled:     v.GetBool("seed.enabled"),
		SeedToken:       v.GetString("seed.token"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: durations["rate_limit.window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.SearchBackend {
	case BackendDatabase:
	case BackendAlgolia:
		if cfg.AlgoliaAppID == "" || cfg.AlgoliaAPIKey == "" {
			return Config{}, fmt.Errorf("algolia search backend requires app id and api key")
		}
	default:
		return Config{}, fmt.Errorf("unsupported search backend %q", cfg.SearchBackend)
	}

	switch cfg.ProgramsSource {
	case BackendDatabase:
	case BackendGraphQL:
		if cfg.GraphQLURL == "" {
			return Config{}, fmt.Errorf("graphql programs source requires graphql.url")
		}
	default:
		return Config{}, fmt.Errorf("unsupported programs source %q", cfg.ProgramsSource)
	}

	if cfg.SeedEnabled && cfg.SeedToken == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}

	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = 25
	}

	return cfg, nil
}
