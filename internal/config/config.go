// Package config loads runner-wide defaults from the environment and
// an optional coderunner.toml, layered through viper so env var names
// stay the single source of truth rather than scattered os.Getenv
// calls.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the handful of process-wide overrides this module
// reads from the environment. CIForceDenoInHost is the only env var
// the runner contract defines on the read side; the rest are written
// to the child, never read back.
type Config struct {
	CIForceDenoInHost bool
	ContainerEngine   string
	ContainerImage    string
	RedisAddr         string
}

// Load reads configuration from the process environment (no prefix:
// each key upper-cased with dots turned into underscores, e.g.
// CONTAINER_ENGINE, CONTAINER_IMAGE, REDIS_ADDR, plus the legacy
// CI_FORCE_DENO_IN_HOST name, which is preserved verbatim since it is
// part of the wire contract) and, if present, a coderunner.toml in the
// current directory.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("coderunner")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("container.engine", "docker")
	v.SetDefault("container.image", "dcspark/shinkai-code-runner:0.9.3")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: read coderunner.toml: %w", err)
		}
	}

	// CI_FORCE_DENO_IN_HOST is bound verbatim rather than through the
	// container.* namespace above: it is an external contract name,
	// not an internal config key.
	_ = v.BindEnv("ci_force_deno_in_host", "CI_FORCE_DENO_IN_HOST")

	return Config{
		CIForceDenoInHost: v.GetBool("ci_force_deno_in_host"),
		ContainerEngine:   v.GetString("container.engine"),
		ContainerImage:    v.GetString("container.image"),
		RedisAddr:         v.GetString("redis.addr"),
	}, nil
}
