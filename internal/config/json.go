package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] in the layout of the JSON
// configuration file.
type StructuredJSONConfig struct {
	App struct {
		Version  string `json:"version"`
		LogLevel string `json:"log_level"`
		LogFile  string `json:"log_file"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress string `json:"http_address"`
		Token       string `json:"token"`
	} `json:"server,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		Token          string   `json:"token"`
	} `json:"adapter,omitempty"`

	Engine struct {
		CacheCapacity   int      `json:"cache_capacity"`
		MaxInFlight     int      `json:"max_in_flight"`
		MaxRetries      int      `json:"max_retries"`
		MaxStoreRetries int      `json:"max_store_retries"`
		RetryBaseDelay  Duration `json:"retry_base_delay"`
		RetryMaxDelay   Duration `json:"retry_max_delay"`
		BatchSize       int      `json:"batch_size"`
		Retention       Duration `json:"retention"`
		AutoPropagate   bool     `json:"auto_propagate"`
	} `json:"engine,omitempty"`

	Workers struct {
		SyncInterval  Duration `json:"sync_interval"`
		PurgeInterval Duration `json:"purge_interval"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Version:  jsonCfg.App.Version,
			LogLevel: jsonCfg.App.LogLevel,
			LogFile:  jsonCfg.App.LogFile,
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Server: Server{
			HTTPAddress: jsonCfg.Server.HTTPAddress,
			Token:       jsonCfg.Server.Token,
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			Token:          jsonCfg.Adapter.Token,
		},
		Engine: Engine{
			CacheCapacity:   jsonCfg.Engine.CacheCapacity,
			MaxInFlight:     jsonCfg.Engine.MaxInFlight,
			MaxRetries:      jsonCfg.Engine.MaxRetries,
			MaxStoreRetries: jsonCfg.Engine.MaxStoreRetries,
			RetryBaseDelay:  time.Duration(jsonCfg.Engine.RetryBaseDelay),
			RetryMaxDelay:   time.Duration(jsonCfg.Engine.RetryMaxDelay),
			BatchSize:       jsonCfg.Engine.BatchSize,
			Retention:       time.Duration(jsonCfg.Engine.Retention),
			AutoPropagate:   jsonCfg.Engine.AutoPropagate,
		},
		Workers: Workers{
			SyncInterval:  time.Duration(jsonCfg.Workers.SyncInterval),
			PurgeInterval: time.Duration(jsonCfg.Workers.PurgeInterval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
