// Package config provides functionality for managing configuration options
// for the application using a JSON file, command-line flags and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// ResultHostname is the base URL used for result links.
	ResultHostname string `json:"base_url"`

	// FilePath is the path to the storage file for persistent data.
	FilePath string `json:"file_storage_path"`

	// DatabaseDSN holds the Postgres connection string.
	DatabaseDSN string `json:"database_dsn"`

	// SQLitePath is the SQLite database file. ":memory:" is allowed.
	SQLitePath string `json:"sqlite_path"`

	// RedisAddr is the host:port of a Redis server used as the store.
	RedisAddr string `json:"redis_addr"`

	// GRPCPort is the port of the gRPC listener. Zero disables it.
	GRPCPort int `json:"grpc_port"`

	// EnablePprof indicates whether to enable pprof for performance profiling.
	EnablePprof bool `json:"enable_pprof"`

	// EnableHTTPS indicates whether to enable https.
	EnableHTTPS bool `json:"enable_https"`

	LogLevel string `json:"log_level"`

	DefaultCodeLength int `json:"code_length"`
	MinCodeLength     int `json:"min_code_length"`
	MaxCodeLength     int `json:"max_code_length"`

	// AsyncClicks hands redirect clicks to a batching worker.
	AsyncClicks bool `json:"async_clicks"`

	// Config is the path of the JSON file the options were read from.
	Config string `json:"-"`
}

// Default returns the options used when nothing else is configured.
func Default() *Options {
	return &Options{
		Port:              "localhost:8080",
		ResultHostname:    "http://localhost:8080",
		GRPCPort:          3200,
		LogLevel:          "info",
		DefaultCodeLength: 6,
		MinCodeLength:     3,
		MaxCodeLength:     20,
	}
}

func newFlagSet(o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("shortener", flag.ContinueOnError)

	fs.StringVar(&o.Port, "a", o.Port, "run on ip:port server")
	fs.StringVar(&o.ResultHostname, "b", o.ResultHostname, "result base url")
	fs.StringVar(&o.FilePath, "f", o.FilePath, "path to storage file")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "postgres dsn")
	fs.StringVar(&o.SQLitePath, "l", o.SQLitePath, "path to sqlite database")
	fs.StringVar(&o.RedisAddr, "r", o.RedisAddr, "redis address")
	fs.IntVar(&o.GRPCPort, "g", o.GRPCPort, "grpc port, 0 disables grpc")
	fs.BoolVar(&o.EnablePprof, "p", o.EnablePprof, "enable pprof")
	fs.BoolVar(&o.EnableHTTPS, "s", o.EnableHTTPS, "enable https")
	fs.StringVar(&o.Config, "c", o.Config, "path to json config file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.IntVar(&o.DefaultCodeLength, "code-length", o.DefaultCodeLength, "length of generated short codes")
	fs.IntVar(&o.MinCodeLength, "min-code-length", o.MinCodeLength, "minimum custom code length")
	fs.IntVar(&o.MaxCodeLength, "max-code-length", o.MaxCodeLength, "maximum custom code length")
	fs.BoolVar(&o.AsyncClicks, "async-clicks", o.AsyncClicks, "count clicks in background batches")

	return fs
}

// Parse loads a .env file when one exists and then reads the process arguments
// and environment.
func Parse() (*Options, error) {
	_ = godotenv.Load()

	return ParseArgs(os.Args[1:])
}

// ParseArgs builds Options from defaults, an optional JSON file, args and the
// environment, each overriding the previous one.
func ParseArgs(args []string) (*Options, error) {
	options := Default()
	if err := newFlagSet(options).Parse(args); err != nil {
		return nil, err
	}

	path := options.Config
	if env := os.Getenv("CONFIG"); env != "" {
		path = env
	}

	if path != "" {
		options = Default()
		if err := loadFile(path, options); err != nil {
			return nil, err
		}

		// flags win over the file
		if err := newFlagSet(options).Parse(args); err != nil {
			return nil, err
		}
		options.Config = path
	}

	if err := applyEnv(options); err != nil {
		return nil, err
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	return options, nil
}

func loadFile(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

func applyEnv(o *Options) error {
	strs := map[string]*string{
		"SERVER_ADDRESS":    &o.Port,
		"BASE_URL":          &o.ResultHostname,
		"FILE_STORAGE_PATH": &o.FilePath,
		"DATABASE_DSN":      &o.DatabaseDSN,
		"SQLITE_PATH":       &o.SQLitePath,
		"REDIS_ADDR":        &o.RedisAddr,
		"LOG_LEVEL":         &o.LogLevel,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GRPC_PORT":       &o.GRPCPort,
		"CODE_LENGTH":     &o.DefaultCodeLength,
		"MIN_CODE_LENGTH": &o.MinCodeLength,
		"MAX_CODE_LENGTH": &o.MaxCodeLength,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"ENABLE_PPROF": &o.EnablePprof,
		"ENABLE_HTTPS": &o.EnableHTTPS,
		"ASYNC_CLICKS": &o.AsyncClicks,
	}
	for name, dst := range bools {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}

	return nil
}

// Validate checks that the code length bounds are consistent.
func (o *Options) Validate() error {
	if o.MinCodeLength <= 0 {
		return errors.New("min code length must be positive")
	}
	if o.MinCodeLength > o.DefaultCodeLength || o.DefaultCodeLength > o.MaxCodeLength {
		return fmt.Errorf("code lengths must satisfy min <= default <= max, got %d/%d/%d",
			o.MinCodeLength, o.DefaultCodeLength, o.MaxCodeLength)
	}
	if o.GRPCPort < 0 || o.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", o.GRPCPort)
	}
	return nil
}
