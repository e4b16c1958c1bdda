package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Market         MarketConfig         `yaml:"market"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "postgres" or "memory"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds the optional event fan-out settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// MarketConfig holds marketplace policy and identity settings.
type MarketConfig struct {
	// AdminAccount may call the policy update endpoints.
	AdminAccount string `yaml:"admin_account"`
	// MarketAccount is the identity holding escrowed items and funds.
	MarketAccount string `yaml:"market_account"`
	// AuctionPeriod is how long a newly listed auction accepts bids.
	AuctionPeriod time.Duration `yaml:"auction_period"`
	// MinParticipants is the bid count an auction needs to settle as a sale.
	MinParticipants int `yaml:"min_participants"`
	// SweepInterval is how often expired auctions are finalized. Zero
	// disables the sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// SeedBalances pre-funds payment-ledger accounts on startup. Dev only.
	SeedBalances map[string]int64 `yaml:"seed_balances"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "postgres",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "market.events",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "marketd",
			ServiceVersion: "0.1.0",
		},
		Market: MarketConfig{
			AdminAccount:    "admin",
			MarketAccount:   "marketplace",
			AuctionPeriod:   72 * time.Hour,
			MinParticipants: 2,
			SweepInterval:   time.Minute,
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "marketd-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\" or \"memory\"", c.Database.Driver)
	}
	if c.Market.AuctionPeriod <= 0 {
		return fmt.Errorf("market.auction_period must be positive, got %s", c.Market.AuctionPeriod)
	}
	if c.Market.MinParticipants < 0 {
		return fmt.Errorf("market.min_participants must be >= 0, got %d", c.Market.MinParticipants)
	}
	if c.Market.AdminAccount == "" {
		return fmt.Errorf("market.admin_account must not be empty")
	}
	if c.Market.MarketAccount == "" {
		return fmt.Errorf("market.market_account must not be empty")
	}
	return nil
}
