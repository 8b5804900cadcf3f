// Package config provides type-safe environment variable loading with
// per-type caching, grounded on the teacher pack's
// dmitrymomot-foundation/core/config package: caarlos0/env/v11 struct
// tags for parsing, joho/godotenv for an optional local .env file
// (loaded once, under a sync.Once), and a mutex-guarded cache per
// concrete type so repeated Load calls for the same config type don't
// re-parse the environment.
package config

import (
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	envOnce   sync.Once
	cacheMu   sync.Mutex
	cache     = map[reflect.Type]any{}
)

// loadDotEnv loads a .env file from the working directory, once per
// process. A missing .env file is not an error — environment variables
// set by the process's own environment are always honored either way.
func loadDotEnv() {
	envOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Load parses environment variables into a new T using struct `env`
// tags, caching the result so subsequent Load calls for the same T
// return the same value without re-parsing.
func Load[T any]() (T, error) {
	loadDotEnv()

	t := reflect.TypeOf((*T)(nil)).Elem()

	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		return cached.(T), nil
	}
	cacheMu.Unlock()

	var cfg T
	if err := env.Parse(&cfg); err != nil {
		var zero T
		return zero, err
	}

	cacheMu.Lock()
	cache[t] = cfg
	cacheMu.Unlock()

	return cfg, nil
}

// MustLoad is Load, panicking on error — convenient at process startup
// where there is no sensible recovery from a missing required variable.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ServerConfig is the environment-driven configuration for
// cmd/fabricserver.
type ServerConfig struct {
	ListenAddr   string   `env:"FABRIC_LISTEN_ADDR" envDefault:":8080"`
	EtcdEndpoints []string `env:"FABRIC_ETCD_ENDPOINTS" envSeparator:","`
	LogLevel     string   `env:"FABRIC_LOG_LEVEL" envDefault:"info"`

	CacheSize int    `env:"FABRIC_CACHE_SIZE" envDefault:"1024"`
	RateLimit float64 `env:"FABRIC_RATE_LIMIT" envDefault:"100"`
	RateBurst int    `env:"FABRIC_RATE_BURST" envDefault:"20"`

	BreakerFailureThreshold uint32 `env:"FABRIC_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
}

// ClientConfig is the environment-driven configuration for
// cmd/fabricclient.
type ClientConfig struct {
	ServerURL    string `env:"FABRIC_SERVER_URL,required"`
	LogLevel     string `env:"FABRIC_LOG_LEVEL" envDefault:"info"`
	RequestRetries int  `env:"FABRIC_REQUEST_RETRIES" envDefault:"3"`
}
