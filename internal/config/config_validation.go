// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"
)

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}
	if u, err := url.Parse(cfg.Adapter.HTTPAddress); err != nil || u.Host == "" {
		return fmt.Errorf("%w: bad address %q", ErrInvalidAdapterConfigs, cfg.Adapter.HTTPAddress)
	}

	if err := cfg.Engine.validate(); err != nil {
		return err
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.PurgeInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.Server.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}

	return nil
}

func (e Engine) validate() error {
	switch {
	case e.CacheCapacity <= 0:
		return fmt.Errorf("%w: cache capacity must be positive", ErrInvalidEngineConfigs)
	case e.MaxInFlight <= 0:
		return fmt.Errorf("%w: max in flight must be positive", ErrInvalidEngineConfigs)
	case e.MaxRetries <= 0:
		return fmt.Errorf("%w: max retries must be positive", ErrInvalidEngineConfigs)
	case e.MaxStoreRetries < 0:
		return fmt.Errorf("%w: max store retries must not be negative", ErrInvalidEngineConfigs)
	case e.RetryBaseDelay <= 0 || e.RetryMaxDelay < e.RetryBaseDelay:
		return fmt.Errorf("%w: retry delays must satisfy 0 < base <= max", ErrInvalidEngineConfigs)
	case e.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidEngineConfigs)
	case e.Retention <= 0:
		return fmt.Errorf("%w: retention must be positive", ErrInvalidEngineConfigs)
	}
	return nil
}
