package config

import "time"

// Default values applied to every field no other source has set.
const (
	DefaultDSN             = "file:content-sync.db?_busy_timeout=5000&_journal_mode=WAL"
	DefaultAdapterAddress  = "http://localhost:8080"
	DefaultRequestTimeout  = 10 * time.Second
	DefaultServerAddress   = "127.0.0.1:7070"
	DefaultCacheCapacity   = 128
	DefaultMaxInFlight     = 4
	DefaultMaxRetries      = 5
	DefaultMaxStoreRetries = 20
	DefaultRetryBaseDelay  = time.Second
	DefaultRetryMaxDelay   = 5 * time.Minute
	DefaultBatchSize       = 16
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultSyncInterval    = 15 * time.Second
	DefaultPurgeInterval   = time.Hour
	DefaultLogLevel        = "info"
)

// Defaults returns the configuration used for every unset field.
func Defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			LogLevel: DefaultLogLevel,
		},
		Storage: Storage{
			DB: DB{DSN: DefaultDSN},
		},
		Server: Server{
			HTTPAddress: DefaultServerAddress,
		},
		Adapter: Adapter{
			HTTPAddress:    DefaultAdapterAddress,
			RequestTimeout: DefaultRequestTimeout,
		},
		Engine: Engine{
			CacheCapacity:   DefaultCacheCapacity,
			MaxInFlight:     DefaultMaxInFlight,
			MaxRetries:      DefaultMaxRetries,
			MaxStoreRetries: DefaultMaxStoreRetries,
			RetryBaseDelay:  DefaultRetryBaseDelay,
			RetryMaxDelay:   DefaultRetryMaxDelay,
			BatchSize:       DefaultBatchSize,
			Retention:       DefaultRetention,
		},
		Workers: Workers{
			SyncInterval:  DefaultSyncInterval,
			PurgeInterval: DefaultPurgeInterval,
		},
	}
}
