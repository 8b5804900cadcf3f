package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type defaultsConfig struct {
	Name string `env:"FABRIC_TEST_DEFAULTS_NAME" envDefault:"anon"`
	Port int    `env:"FABRIC_TEST_DEFAULTS_PORT" envDefault:"9000"`
}

type cachingConfig struct {
	Name string `env:"FABRIC_TEST_CACHING_NAME" envDefault:"anon"`
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load[defaultsConfig]()
	require.NoError(t, err)
	assert.Equal(t, "anon", cfg.Name)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadCachesPerType(t *testing.T) {
	t.Setenv("FABRIC_TEST_CACHING_NAME", "first")
	first, err := Load[cachingConfig]()
	require.NoError(t, err)
	assert.Equal(t, "first", first.Name)

	t.Setenv("FABRIC_TEST_CACHING_NAME", "second")
	second, err := Load[cachingConfig]()
	require.NoError(t, err)
	assert.Equal(t, "first", second.Name, "second Load must reuse the cached value, not re-read the environment")
}
