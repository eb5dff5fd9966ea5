// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the content
// sync daemon. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, an optional
// JSON file and finally the built-in defaults.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds process-level settings such as the version string and the
	// log level.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the on-device database.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds the listen address of the local control API.
	Server Server `envPrefix:"SERVER_"`

	// Adapter holds the settings of the remote content service client.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Engine holds tuning knobs of the sync engine: cache size, retry
	// policy and parallelism.
	Engine Engine `envPrefix:"ENGINE_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Storage groups the configuration for all storage backends.
type Storage struct {
	// DB holds the SQLite connection settings.
	DB DB `envPrefix:"DB_"`
}

// App holds process-level configuration values.
type App struct {
	// Version is the semantic version string of the running daemon.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	// Env: APP_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL"`

	// LogFile redirects logs from stdout to the given file when set.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`
}

// Server holds the settings of the local control API.
type Server struct {
	// HTTPAddress is the TCP address the control API listens on,
	// in "host:port" format (e.g. "127.0.0.1:7070").
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// Token, when set, must be presented as a bearer token on every
	// control API request.
	// Env: SERVER_TOKEN
	Token string `env:"TOKEN"`
}

// DB holds connection settings for the on-device database.
type DB struct {
	// DSN is the go-sqlite3 data source name
	// (e.g. "file:content.db?_busy_timeout=5000").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Adapter holds the settings of the remote content service client.
type Adapter struct {
	// HTTPAddress is the base URL of the remote content service.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single dispatch to the remote service.
	// Exceeding it counts as a transient failure.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Token is the bearer token presented to the remote service.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`
}

// Engine holds the tuning knobs of the sync engine.
type Engine struct {
	// CacheCapacity is the number of bodies kept in the content cache.
	// Env: ENGINE_CACHE_CAPACITY
	CacheCapacity int `env:"CACHE_CAPACITY"`

	// MaxInFlight bounds the number of concurrent dispatches.
	// Env: ENGINE_MAX_IN_FLIGHT
	MaxInFlight int `env:"MAX_IN_FLIGHT"`

	// MaxRetries is the number of dispatch attempts an operation gets. The
	// failure of the last one is terminal even when it was transient.
	// Env: ENGINE_MAX_RETRIES
	MaxRetries int `env:"MAX_RETRIES"`

	// MaxStoreRetries bounds the attempts of an operation the remote has
	// confirmed but whose result could not be written locally.
	// Env: ENGINE_MAX_STORE_RETRIES
	MaxStoreRetries int `env:"MAX_STORE_RETRIES"`

	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff.
	// Env: ENGINE_RETRY_BASE_DELAY, ENGINE_RETRY_MAX_DELAY
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY"`
	RetryMaxDelay  time.Duration `env:"RETRY_MAX_DELAY"`

	// BatchSize is the maximum number of operations taken per drain.
	// Env: ENGINE_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// Retention is how long terminal queue entries are kept.
	// Env: ENGINE_RETENTION
	Retention time.Duration `env:"RETENTION"`

	// AutoPropagate enqueues an update after every local edit of a public
	// record.
	// Env: ENGINE_AUTO_PROPAGATE
	AutoPropagate bool `env:"AUTO_PROPAGATE"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval is how often the sync job drains the queue.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// PurgeInterval is how often terminal queue entries are purged.
	// Env: WORKERS_PURGE_INTERVAL
	PurgeInterval time.Duration `env:"PURGE_INTERVAL"`
}

// GetStructuredConfig loads, merges, and validates the daemon configuration
// from all available sources. For every field the first source that sets a
// non-zero value wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
