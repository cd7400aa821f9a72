/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads bunrepo settings from defaults, a YAML file, a
// .env file and the environment, later sources overriding earlier ones.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/tomoncle/bunrepo/criteria"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/utils"
	"gopkg.in/yaml.v3"
)

const DefaultEnvPrefix = "BUNREPO_"

var defaultConfigPaths = []string{
	"bunrepo.yaml",
	"bunrepo.yml",
	"config/bunrepo.yaml",
	"config/bunrepo.yml",
}

type Config struct {
	Database   database.Config  `json:"database" yaml:"database"`
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// RepositoryConfig holds the defaults applied to repositories and to the
// request search criterion.
type RepositoryConfig struct {
	PerPage           int                 `json:"per_page" yaml:"per_page"`
	AcceptedOperators []string            `json:"accepted_operators" yaml:"accepted_operators"`
	Params            criteria.ParamNames `json:"params" yaml:"params"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text or json
}

func defaults() map[string]interface{} {
	conn := database.DefaultConnectionConfig()
	params := criteria.DefaultParamNames()
	return map[string]interface{}{
		"database.connection.type":                  "sqlite",
		"database.connection.dbname":                "bunrepo",
		"database.connection.max_idle_conns":        conn.MaxIdleConns,
		"database.connection.max_open_conns":        conn.MaxOpenConns,
		"database.connection.conn_max_lifetime":     conn.ConnMaxLifetime.String(),
		"database.connection.conn_max_idle_time":    conn.ConnMaxIdleTime.String(),
		"database.connection.connect_timeout":       conn.ConnectTimeout.String(),
		"database.connection.read_timeout":          conn.ReadTimeout.String(),
		"database.connection.write_timeout":         conn.WriteTimeout.String(),
		"database.connection.enable_reconnect":      conn.EnableReconnect,
		"database.connection.reconnect_interval":    conn.ReconnectInterval.String(),
		"database.connection.max_reconnect_tries":   conn.MaxReconnectTries,
		"database.connection.health_check_interval": conn.HealthCheckInterval.String(),
		"database.connection.query_log_style":       conn.QueryLogStyle,
		"database.connection.slow_query_time":       conn.SlowQueryTime.String(),
		"repository.per_page":                       repository.DefaultPerPage,
		"repository.accepted_operators":             append([]string(nil), criteria.DefaultAcceptedOperators...),
		"repository.params.search":                  params.Search,
		"repository.params.search_fields":           params.SearchFields,
		"repository.params.filter":                  params.Filter,
		"repository.params.order_by":                params.OrderBy,
		"repository.params.sorted_by":               params.SortedBy,
		"repository.params.with":                    params.With,
		"repository.params.search_join":             params.SearchJoin,
		"log.level":                                 "info",
		"log.format":                                "text",
	}
}

type options struct {
	path      string
	envPrefix string
	dotenv    []string
}

type Option func(*options)

// WithFile loads path instead of the first existing default config file.
// A named file that does not exist is an error.
func WithFile(path string) Option {
	return func(o *options) { o.path = path }
}

// WithEnvPrefix changes the environment prefix. "__" separates nested keys,
// e.g. BUNREPO_DATABASE__CONNECTION__HOST sets database.connection.host.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// WithDotEnv loads the given .env files into the process environment
// before reading it. Missing files are skipped.
func WithDotEnv(paths ...string) Option {
	return func(o *options) { o.dotenv = paths }
}

// Load builds a Config from defaults, the YAML file, .env files and the
// environment, in that order.
func Load(opts ...Option) (*Config, error) {
	o := &options{envPrefix: DefaultEnvPrefix, dotenv: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	path, err := resolvePath(o.path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	for _, p := range o.dotenv {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", p, err)
		}
	}

	if o.envPrefix != "" {
		prefix := strings.ToUpper(strings.TrimSuffix(o.envPrefix, "_")) + "_"
		transform := func(s string) string {
			s = strings.TrimPrefix(s, prefix)
			return strings.ToLower(strings.ReplaceAll(s, "__", "."))
		}
		if err := k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
			return nil, fmt.Errorf("config: loading env: %w", err)
		}
	}

	cfg := &Config{}
	conf := koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			TagName:          "yaml",
			Result:           cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", cfg, conf); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return path, nil
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Validate checks the settings Load cannot type check.
func (c *Config) Validate() error {
	if c.Repository.PerPage < 1 {
		return fmt.Errorf("config: repository.per_page must be positive, got %d", c.Repository.PerPage)
	}
	if c.Database.ConnectionConfig.Type == "" {
		return errors.New("config: database.connection.type is required")
	}
	return nil
}

// Export writes c as YAML to path, creating parent directories.
func (c *Config) Export(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ApplyLogging configures the named loggers from c.Log. Loggers created
// afterwards pick up the format as well.
func (c *Config) ApplyLogging() {
	utils.ConfigureLogFormat(c.Log.Format)
	utils.ConfigureLogLevel(c.Log.Level)
}

// SearchOptions returns the criteria.Search options matching c.
func (c *Config) SearchOptions() []criteria.SearchOption {
	return []criteria.SearchOption{
		criteria.WithParamNames(c.Repository.Params),
		criteria.WithAcceptedOperators(c.Repository.AcceptedOperators...),
	}
}

// RepositoryOptions returns the repository options matching c.
func RepositoryOptions[T any](c *Config) []repository.Option[T] {
	return []repository.Option[T]{
		repository.WithPerPage[T](c.Repository.PerPage),
	}
}
