// Package config centralizes how DocVault reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration shared by the server, the worker
// and the CLI.
type Config struct {
	Address        string
	DatabaseURL    string
	DBMaxConns     int32
	RequestTimeout time.Duration

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Bucket    string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ProcessingPool int

	OCRBinary      string
	OCRLang        string
	OCRTimeout     time.Duration
	ConvertBinary  string
	ConvertTimeout time.Duration
	TempDir        string

	LogLevel  string
	LogFormat string
}

const (
	defaultAddress        = ":8080"
	defaultDBMaxConns     = 8
	defaultRequestTimeout = 30 * time.Second
	defaultS3Endpoint     = "localhost:9000"
	defaultS3Region       = "us-east-1"
	defaultS3Bucket       = "documents"
	defaultRedisAddr      = "localhost:6379"
	defaultWorkerCount    = 2
	defaultOCRBinary      = "tesseract"
	defaultOCRLang        = "sin+eng"
	defaultOCRTimeout     = 2 * time.Minute
	defaultConvertBinary  = "libreoffice"
	defaultConvertTimeout = 2 * time.Minute
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// Load reads configuration from environment variables falling back to defaults.
// When DOCVAULT_CONFIG names a YAML file its keys (the same names as the
// environment variables) supply values the environment leaves unset.
// Unparseable numbers and durations fall back to their defaults.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("DOCVAULT_CONFIG"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return src.load()
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func (s source) load() (*Config, error) {
	cfg := &Config{
		Address:        s.readEnv("DOCVAULT_ADDRESS", defaultAddress),
		DatabaseURL:    s.readEnv("DATABASE_URL", ""),
		DBMaxConns:     int32(s.parseInt("DOCVAULT_DB_MAX_CONNS", defaultDBMaxConns)),
		RequestTimeout: s.parseDuration("DOCVAULT_REQUEST_TIMEOUT", defaultRequestTimeout),

		S3Endpoint:  s.readEnv("S3_ENDPOINT", defaultS3Endpoint),
		S3AccessKey: s.readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: s.readEnv("S3_SECRET_KEY", ""),
		S3Region:    s.readEnv("S3_REGION", defaultS3Region),
		S3UseSSL:    s.parseBool("S3_USE_SSL", false),
		S3Bucket:    s.readEnv("S3_BUCKET", defaultS3Bucket),

		RedisAddr:      s.readEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:  s.readEnv("REDIS_PASSWORD", ""),
		RedisDB:        s.parseInt("REDIS_DB", 0),
		ProcessingPool: s.parseInt("DOCVAULT_WORKERS", defaultWorkerCount),

		OCRBinary:      s.readEnv("OCR_BINARY", defaultOCRBinary),
		OCRLang:        s.readEnv("OCR_LANG", defaultOCRLang),
		OCRTimeout:     s.parseDuration("OCR_TIMEOUT", defaultOCRTimeout),
		ConvertBinary:  s.readEnv("CONVERT_BINARY", defaultConvertBinary),
		ConvertTimeout: s.parseDuration("CONVERT_TIMEOUT", defaultConvertTimeout),
		TempDir:        s.readEnv("DOCVAULT_TMP_DIR", os.TempDir()),

		LogLevel:  strings.ToLower(s.readEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat: strings.ToLower(s.readEnv("LOG_FORMAT", defaultLogFormat)),
	}
	if cfg.ProcessingPool <= 0 {
		cfg.ProcessingPool = defaultWorkerCount
	}
	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = defaultDBMaxConns
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var problems []string
	if c.Address == "" {
		problems = append(problems, "DOCVAULT_ADDRESS must not be empty")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "DOCVAULT_REQUEST_TIMEOUT must be positive")
	}
	if c.OCRTimeout <= 0 {
		problems = append(problems, "OCR_TIMEOUT must be positive")
	}
	if c.ConvertTimeout <= 0 {
		problems = append(problems, "CONVERT_TIMEOUT must be positive")
	}
	if c.S3Bucket == "" {
		problems = append(problems, "S3_BUCKET must not be empty")
	}
	if c.RedisDB < 0 {
		problems = append(problems, "REDIS_DB must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesPostgres reports whether a database DSN was configured. Without one the
// server keeps documents in memory.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func (s source) readEnv(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s source) parseInt(key string, def int) int {
	if v, ok := s.lookup(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func (s source) parseBool(key string, def bool) bool {
	if v, ok := s.lookup(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func (s source) parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := s.lookup(key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
