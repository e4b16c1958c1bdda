package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kallestrom/nftmarket/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
server:
  port: 9090
database:
  host: "db.example.com"
  port: 5433
  user: "market"
  password: "secret"
  dbname: "market"
  sslmode: "require"
  driver: "postgres"
market:
  admin_account: "0xadmin"
  market_account: "0xmarket"
  auction_period: "96h"
  min_participants: 3
telemetry:
  service_name: "my-marketd"
  otlp_endpoint: "localhost:4318"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Market.AuctionPeriod != 96*time.Hour {
					t.Errorf("got auction period %s, want 96h", cfg.Market.AuctionPeriod)
				}
				if cfg.Market.MinParticipants != 3 {
					t.Errorf("got min participants %d, want 3", cfg.Market.MinParticipants)
				}
				if cfg.Telemetry.ServiceName != "my-marketd" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-marketd")
				}
			},
		},
		{
			name:    "defaults applied",
			yaml:    `{}`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Host != "localhost" {
					t.Errorf("got db host %q, want %q", cfg.Database.Host, "localhost")
				}
				if cfg.Database.Driver != "postgres" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "postgres")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.Market.AuctionPeriod != 72*time.Hour {
					t.Errorf("got auction period %s, want 72h", cfg.Market.AuctionPeriod)
				}
				if cfg.Market.MinParticipants != 2 {
					t.Errorf("got min participants %d, want 2", cfg.Market.MinParticipants)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "memory driver accepted",
			yaml: `
database:
  driver: "memory"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "memory")
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "non-positive auction period rejected",
			yaml: `
market:
  auction_period: "-1h"
`,
			wantErr: true,
		},
		{
			name: "negative min participants rejected",
			yaml: `
market:
  min_participants: -1
`,
			wantErr: true,
		},
		{
			name: "empty admin account rejected",
			yaml: `
market:
  admin_account: ""
  market_account: "m"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
