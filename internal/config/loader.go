// Package config loads service settings from config.yaml and CUSTIMPORT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/custimport/internal/db"
	"github.com/rpattn/custimport/internal/dedupe"
	"github.com/rpattn/custimport/internal/logging"
	"github.com/rpattn/custimport/internal/session"
	"github.com/rpattn/custimport/internal/spreadsheet"
	"github.com/rpattn/custimport/internal/vocabulary"
)

// EnvPrefix is prepended to every environment override, e.g. CUSTIMPORT_DATABASE_HOST.
const EnvPrefix = "CUSTIMPORT"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxConns   int32  `mapstructure:"max_conns"`
	MinConns   int32  `mapstructure:"min_conns"`
}

// Postgres converts the section into the pool configuration.
func (d DatabaseConfig) Postgres() db.Config {
	return db.Config{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		DBName:   d.DBName,
		SSLMode:  d.SSLMode,
		MaxConns: d.MaxConns,
		MinConns: d.MinConns,
	}
}

type ImportConfig struct {
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	PreviewRows    int           `mapstructure:"preview_rows"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// MatchingConfig holds the vocabulary and duplicate thresholds.
type MatchingConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	AmbiguityMargin     float64 `mapstructure:"ambiguity_margin"`
	DuplicateThreshold  float64 `mapstructure:"duplicate_threshold"`
	AddressFloor        float64 `mapstructure:"address_floor"`
}

func (m MatchingConfig) Vocabulary() vocabulary.Config {
	return vocabulary.Config{SimilarityThreshold: m.SimilarityThreshold, AmbiguityMargin: m.AmbiguityMargin}
}

func (m MatchingConfig) Dedupe() dedupe.Config {
	return dedupe.Config{Threshold: m.DuplicateThreshold, AddressFloor: m.AddressFloor}
}

type SessionsConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig                  `mapstructure:"server"`
	Database     DatabaseConfig                `mapstructure:"database"`
	Import       ImportConfig                  `mapstructure:"import"`
	Matching     MatchingConfig                `mapstructure:"matching"`
	Sessions     SessionsConfig                `mapstructure:"sessions"`
	Log          logging.Config                `mapstructure:"log"`
	Vocabularies map[string][]vocabulary.Entry `mapstructure:"vocabularies"`

	// File is the config file that was read, empty when only defaults and env were used.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	vocab := vocabulary.DefaultConfig()
	dup := dedupe.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.sqlite_path", "custimport.db")
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)
	v.SetDefault("database.min_conns", dbDefaults.MinConns)

	v.SetDefault("import.max_upload_bytes", spreadsheet.DefaultMaxBytes)
	v.SetDefault("import.preview_rows", 100)
	v.SetDefault("import.session_ttl", session.DefaultTTL)
	v.SetDefault("import.sweep_interval", 5*time.Minute)

	v.SetDefault("matching.similarity_threshold", vocab.SimilarityThreshold)
	v.SetDefault("matching.ambiguity_margin", vocab.AmbiguityMargin)
	v.SetDefault("matching.duplicate_threshold", dup.Threshold)
	v.SetDefault("matching.address_floor", dup.AddressFloor)

	v.SetDefault("sessions.backend", SessionsMemory)
	v.SetDefault("sessions.redis_addr", "localhost:6379")
	v.SetDefault("sessions.redis_db", 0)
	v.SetDefault("sessions.redis_prefix", "custimport:sessions")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads config.yaml from configPath when present. Environment variables override
// file values and defaults fill the rest.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	// kinds missing from the file keep the built-in entries
	for kind, entries := range vocabulary.Defaults() {
		if _, ok := cfg.Vocabularies[kind]; !ok {
			if cfg.Vocabularies == nil {
				cfg.Vocabularies = make(map[string][]vocabulary.Entry)
			}
			cfg.Vocabularies[kind] = entries
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backends, non-positive session timings and thresholds outside (0, 1].
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Sessions.Backend {
	case SessionsMemory, SessionsRedis:
	default:
		return fmt.Errorf("config: unknown sessions backend %q", c.Sessions.Backend)
	}
	if c.Import.SessionTTL <= 0 {
		return fmt.Errorf("config: import.session_ttl must be positive, got %s", c.Import.SessionTTL)
	}
	if c.Import.SweepInterval <= 0 {
		return fmt.Errorf("config: import.sweep_interval must be positive, got %s", c.Import.SweepInterval)
	}
	thresholds := map[string]float64{
		"matching.similarity_threshold": c.Matching.SimilarityThreshold,
		"matching.duplicate_threshold":  c.Matching.DuplicateThreshold,
		"matching.address_floor":        c.Matching.AddressFloor,
	}
	for key, value := range thresholds {
		if value <= 0 || value > 1 {
			return fmt.Errorf("config: %s must be in (0, 1], got %v", key, value)
		}
	}
	if c.Matching.AmbiguityMargin < 0 || c.Matching.AmbiguityMargin >= 1 {
		return fmt.Errorf("config: matching.ambiguity_margin must be in [0, 1), got %v", c.Matching.AmbiguityMargin)
	}
	return nil
}
