/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package config provides structures and functions for loading and managing server configurations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"github.com/asgardeo/stayfront/internal/system/constants"
	"github.com/asgardeo/stayfront/internal/system/log"
)

const (
	defaultHostname             = "localhost"
	defaultPort                 = 8090
	defaultMaxRetries           = 3
	defaultRetryDelayMillis     = 1000
	defaultStorageType          = "memory"
	defaultNamespace            = "default"
	defaultQuotaBytes           = 5 * 1024 * 1024
	defaultCacheMaxSizeBytes    = 5 * 1024 * 1024
	defaultCleanupInterval      = 300
	defaultMemoryEntries        = 1000
	defaultEvictionOrder        = "access"
	defaultAutoSaveIntervalSecs = 5
)

// TLSConfig holds the certificate and key served over HTTPS. Relative paths resolve against home.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

// ServerConfig holds the server configuration details. An empty TLS section serves plain HTTP.
type ServerConfig struct {
	Hostname string    `yaml:"hostname" toml:"hostname"`
	Port     int       `yaml:"port" toml:"port"`
	TLS      TLSConfig `yaml:"tls" toml:"tls"`
}

// UpstreamConfig holds the details of the booking backend the edge forwards to.
type UpstreamConfig struct {
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	MaxRetries   int    `yaml:"max_retries" toml:"max_retries"`
	RetryDelayMs int    `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
}

// DataSource holds the SQL database connection details for the persistent store.
type DataSource struct {
	Type            string `yaml:"type" toml:"type"`
	Hostname        string `yaml:"hostname" toml:"hostname"`
	Port            int    `yaml:"port" toml:"port"`
	Name            string `yaml:"name" toml:"name"`
	Username        string `yaml:"username" toml:"username"`
	Password        string `yaml:"password" toml:"password"`
	SSLMode         string `yaml:"sslmode" toml:"sslmode"`
	Path            string `yaml:"path" toml:"path"`
	Options         string `yaml:"options" toml:"options"`
	MaxOpenConns    int    `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

// RedisConfig holds the Redis connection details for the persistent store.
type RedisConfig struct {
	Address  string `yaml:"address" toml:"address"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

// StorageConfig holds the persistent key-value store configuration.
type StorageConfig struct {
	Type       string      `yaml:"type" toml:"type"`
	Namespace  string      `yaml:"namespace" toml:"namespace"`
	QuotaBytes int64       `yaml:"quota_bytes" toml:"quota_bytes"`
	Database   DataSource  `yaml:"database" toml:"database"`
	Redis      RedisConfig `yaml:"redis" toml:"redis"`
}

// CacheConfig holds the tiered cache configuration.
type CacheConfig struct {
	Disabled           bool   `yaml:"disabled" toml:"disabled"`
	MaxSizeBytes       int64  `yaml:"max_size_bytes" toml:"max_size_bytes"`
	CleanupInterval    int    `yaml:"cleanup_interval" toml:"cleanup_interval"`
	DisableMemoryCache bool   `yaml:"disable_memory_cache" toml:"disable_memory_cache"`
	DisablePersistent  bool   `yaml:"disable_persistent" toml:"disable_persistent"`
	MemoryEntries      int    `yaml:"memory_entries" toml:"memory_entries"`
	EvictionOrder      string `yaml:"eviction_order" toml:"eviction_order"`
}

// RateLimiterConfig holds the rate limiter configuration.
type RateLimiterConfig struct {
	Disabled         bool `yaml:"disabled" toml:"disabled"`
	AutoSaveInterval int  `yaml:"auto_save_interval" toml:"auto_save_interval"`
}

// RoutePolicy holds the cache policy applied to GET requests under a path prefix.
type RoutePolicy struct {
	Prefix   string `yaml:"prefix" toml:"prefix"`
	Strategy string `yaml:"strategy" toml:"strategy"`
	TTL      int    `yaml:"ttl" toml:"ttl"`
}

// GatewayConfig holds the edge gateway configuration.
type GatewayConfig struct {
	Routes []RoutePolicy `yaml:"routes" toml:"routes"`
}

// Config holds the complete configuration details of the server.
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Upstream    UpstreamConfig    `yaml:"upstream" toml:"upstream"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Cache       CacheConfig       `yaml:"cache" toml:"cache"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter" toml:"rate_limiter"`
	Gateway     GatewayConfig     `yaml:"gateway" toml:"gateway"`
}

// LoadEnvFile loads environment variables from a dotenv file if it exists.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig loads the configurations from the specified YAML or TOML file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML configuration: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode YAML configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration file extension: %s", filepath.Ext(path))
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overrides selected file values with STAYFRONT_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	logger := log.GetLogger().With(zap.String(log.LoggerKeyComponentName, "Config"))

	if v := getEnv("SERVER_HOSTNAME"); v != "" {
		cfg.Server.Hostname = v
	}
	if v := getEnv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSERVER_PORT: %w", constants.EnvironmentVariablePrefix, err)
		}
		cfg.Server.Port = port
	}
	if v := getEnv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := getEnv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := getEnv("REDIS_ADDRESS"); v != "" {
		cfg.Storage.Redis.Address = v
	}
	if v := getEnv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := getEnv("DATABASE_PASSWORD"); v != "" {
		cfg.Storage.Database.Password = v
	}

	logger.Debug("Applied environment overrides to configuration")
	return nil
}

// applyDefaults fills unset values with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Hostname == "" {
		cfg.Server.Hostname = defaultHostname
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Upstream.MaxRetries <= 0 {
		cfg.Upstream.MaxRetries = defaultMaxRetries
	}
	if cfg.Upstream.RetryDelayMs <= 0 {
		cfg.Upstream.RetryDelayMs = defaultRetryDelayMillis
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = defaultStorageType
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = defaultNamespace
	}
	if cfg.Storage.QuotaBytes <= 0 {
		cfg.Storage.QuotaBytes = defaultQuotaBytes
	}
	if cfg.Cache.MaxSizeBytes <= 0 {
		cfg.Cache.MaxSizeBytes = defaultCacheMaxSizeBytes
	}
	if cfg.Cache.CleanupInterval <= 0 {
		cfg.Cache.CleanupInterval = defaultCleanupInterval
	}
	if cfg.Cache.MemoryEntries <= 0 {
		cfg.Cache.MemoryEntries = defaultMemoryEntries
	}
	if cfg.Cache.EvictionOrder == "" {
		cfg.Cache.EvictionOrder = defaultEvictionOrder
	}
	if cfg.RateLimiter.AutoSaveInterval <= 0 {
		cfg.RateLimiter.AutoSaveInterval = defaultAutoSaveIntervalSecs
	}
}

// getEnv returns the trimmed value of a STAYFRONT_ prefixed environment variable.
func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(constants.EnvironmentVariablePrefix + key))
}
