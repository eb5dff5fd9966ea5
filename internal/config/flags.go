package config

import (
	"errors"
	"flag"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses the process command line into a [StructuredConfig].
//
// Flags:
//
//	-a control API address in format [host]:[port]
//	-d database DSN
//	-r remote content service base URL
//	-t remote bearer token
//	-c/-config json file path with configs
//	-request-timeout remote request timeout (e.g., "10s")
//	-cache-capacity content cache capacity
//	-max-in-flight concurrent dispatch limit
//	-max-retries retries before a transient failure becomes terminal
//	-sync-interval sync job interval (e.g., "15s")
//	-auto-propagate enqueue updates after edits of public records
//	-log-level zerolog level name
func ParseFlags(args []string) (*StructuredConfig, error) {
	return parseFlags(args)
}

func parseFlags(args []string) (*StructuredConfig, error) {
	var serverAddress NetAddress
	var databaseDSN string
	var adapterAddress string
	var token string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var cacheCapacity int
	var maxInFlight int
	var maxRetries int
	var syncInterval time.Duration
	var autoPropagate bool
	var logLevel string

	fs := flag.NewFlagSet("syncd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.Var(&serverAddress, "a", "Control API address host:port")
	fs.StringVar(&databaseDSN, "d", "", "Database DSN")
	fs.StringVar(&adapterAddress, "r", "", "Remote content service base URL")
	fs.StringVar(&token, "t", "", "Remote bearer token")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 10s)")
	fs.IntVar(&cacheCapacity, "cache-capacity", 0, "Content cache capacity")
	fs.IntVar(&maxInFlight, "max-in-flight", 0, "Concurrent dispatch limit")
	fs.IntVar(&maxRetries, "max-retries", 0, "Retries before a transient failure becomes terminal")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Sync job interval (e.g., 15s)")
	fs.BoolVar(&autoPropagate, "auto-propagate", false, "Enqueue updates after edits of public records")
	fs.StringVar(&logLevel, "log-level", "", "Log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &StructuredConfig{
		App: App{
			LogLevel: logLevel,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Server: Server{
			HTTPAddress: serverAddress.String(),
		},
		Adapter: Adapter{
			HTTPAddress:    adapterAddress,
			RequestTimeout: requestTimeout,
			Token:          token,
		},
		Engine: Engine{
			CacheCapacity: cacheCapacity,
			MaxInFlight:   maxInFlight,
			MaxRetries:    maxRetries,
			AutoPropagate: autoPropagate,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
