package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/economics"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
	Agronomy  AgronomyConfig  `json:"agronomy"`
	Economics EconomicsConfig `json:"economics"`
	Worker    WorkerConfig    `json:"worker"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"` // debug, release, test
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"` // postgres or sqlite
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	Path           string        `json:"path"` // sqlite file, ":memory:" for tests
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// LoggingConfig
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or console
}

// AgronomyConfig points at the methodology tables. Non-zero overrides win
// over the file.
type AgronomyConfig struct {
	MethodologyPath string  `json:"methodology_path"`
	MgOFactor       float64 `json:"mgo_factor"`
	CycleYears      float64 `json:"cycle_years"`
}

// EconomicsConfig holds the default prices of loss estimates
type EconomicsConfig struct {
	FertilizerCostPerHa float64 `json:"fertilizer_cost_per_ha"`
	RevenuePerHa        float64 `json:"revenue_per_ha"`
	LimingCostPerTon    float64 `json:"liming_cost_per_ton"`
}

// WorkerConfig configures the plan consistency sweep
type WorkerConfig struct {
	SweepSchedule string        `json:"sweep_schedule"`
	SweepTimeout  time.Duration `json:"sweep_timeout"`
	RunOnStart    bool          `json:"run_on_start"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Default returns the configuration used when no file or variable is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "liming_portal",
			SSLMode:        "disable",
			Path:           "liming.db",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Economics: EconomicsConfig{
			FertilizerCostPerHa: 8000,
			RevenuePerHa:        35000,
		},
		Worker: WorkerConfig{
			SweepSchedule: "0 3 * * *",
			SweepTimeout:  10 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from file and environment variables. A
// .env file in the working directory is read first; a missing config file
// keeps the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_HOST", &config.Server.Host)
	num("SERVER_PORT", &config.Server.Port)
	str("SERVER_MODE", &config.Server.Mode)

	str("DATABASE_DRIVER", &config.Database.Driver)
	str("DATABASE_HOST", &config.Database.Host)
	num("DATABASE_PORT", &config.Database.Port)
	str("DATABASE_USER", &config.Database.User)
	str("DATABASE_PASSWORD", &config.Database.Password)
	str("DATABASE_DBNAME", &config.Database.DBName)
	str("DATABASE_SSLMODE", &config.Database.SSLMode)
	str("DATABASE_PATH", &config.Database.Path)
	num("DATABASE_MAX_CONNECTIONS", &config.Database.MaxConnections)

	str("LOG_LEVEL", &config.Logging.Level)
	str("LOG_FORMAT", &config.Logging.Format)

	str("METHODOLOGY_PATH", &config.Agronomy.MethodologyPath)
	float("AGRONOMY_MGO_FACTOR", &config.Agronomy.MgOFactor)
	float("AGRONOMY_CYCLE_YEARS", &config.Agronomy.CycleYears)

	float("ECONOMICS_FERTILIZER_COST_PER_HA", &config.Economics.FertilizerCostPerHa)
	float("ECONOMICS_REVENUE_PER_HA", &config.Economics.RevenuePerHa)
	float("ECONOMICS_LIMING_COST_PER_TON", &config.Economics.LimingCostPerTon)

	str("WORKER_SWEEP_SCHEDULE", &config.Worker.SweepSchedule)
	duration("WORKER_SWEEP_TIMEOUT", &config.Worker.SweepTimeout)

	return errors.Join(errs...)
}

// Validate rejects settings the binaries cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Agronomy.MgOFactor < 0 || c.Agronomy.CycleYears < 0 {
		return errors.New("agronomy overrides must not be negative")
	}
	e := c.Economics
	if e.FertilizerCostPerHa < 0 || e.RevenuePerHa < 0 || e.LimingCostPerTon < 0 {
		return errors.New("economics defaults must not be negative")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the zap logger described by the logging section
func (c *LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	config := zap.NewProductionConfig()
	if strings.EqualFold(c.Format, "console") {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

// Methodology loads the methodology file and applies the overrides
func (c *AgronomyConfig) Methodology() (agronomy.Methodology, error) {
	m, err := agronomy.LoadMethodologyFile(c.MethodologyPath)
	if err != nil {
		return agronomy.Methodology{}, err
	}
	if c.MgOFactor > 0 {
		m.MgOFactor = c.MgOFactor
	}
	if c.CycleYears > 0 {
		m.CycleYears = c.CycleYears
	}
	if err := m.Validate(); err != nil {
		return agronomy.Methodology{}, err
	}
	return m, nil
}

// Engine builds the calculation engine with the default product catalog
func (c *AgronomyConfig) Engine() (*agronomy.Engine, error) {
	m, err := c.Methodology()
	if err != nil {
		return nil, err
	}
	return agronomy.NewEngine(m, agronomy.DefaultCatalog())
}

// Params returns the economics defaults as estimator parameters
func (c *EconomicsConfig) Params() economics.Params {
	return economics.Params{
		FertilizerCostPerHa: c.FertilizerCostPerHa,
		RevenuePerHa:        c.RevenuePerHa,
		LimingCostPerTon:    c.LimingCostPerTon,
	}
}
