// Package config loads process configuration for the server and the worker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/material"
	"stockledger/internal/domain/sales"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// Config is the full process configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
	Stock    StockConfig    `koanf:"stock"`
	Material MaterialConfig `koanf:"material"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Worker   WorkerConfig   `koanf:"worker"`
}

type DatabaseConfig struct {
	DSN              string        `koanf:"dsn"`
	MaxConns         int32         `koanf:"max_conns"`
	MinConns         int32         `koanf:"min_conns"`
	MaxConnLifetime  time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `koanf:"max_conn_idle_time"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	// Migrate applies embedded migrations at startup before the schema check.
	Migrate bool `koanf:"migrate"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type StockConfig struct {
	// Scale is the number of fractional digits kept for location quantities.
	Scale int32 `koanf:"scale"`
}

type MaterialConfig struct {
	Tolerance string                     `koanf:"tolerance"`
	Patterns  []material.CategoryPattern `koanf:"patterns"`
}

type LedgerConfig struct {
	Chart           ledger.ChartOfAccounts `koanf:"chart"`
	FeeRates        map[string]string      `koanf:"fee_rates"`
	DiscountMode    string                 `koanf:"discount_mode"`
	Epsilon         string                 `koanf:"epsilon"`
	RevenueRules    []ledger.RevenueRule   `koanf:"revenue_rules"`
	BatchSize       int                    `koanf:"batch_size"`
	ProcessingLease time.Duration          `koanf:"processing_lease"`
	// AuditCompressThreshold is the snapshot size in bytes above which audit
	// rows are zstd-compressed.
	AuditCompressThreshold int `koanf:"audit_compress_threshold"`
}

type WorkerConfig struct {
	PostingInterval   time.Duration `koanf:"posting_interval"`
	MaterialInterval  time.Duration `koanf:"material_interval"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
	MetricsAddr       string        `koanf:"metrics_addr"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:         10,
			MinConns:         2,
			MaxConnLifetime:  time.Hour,
			MaxConnIdleTime:  30 * time.Minute,
			StatementTimeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log:   LogConfig{Level: "info"},
		Stock: StockConfig{Scale: stock.DefaultScale},
		Material: MaterialConfig{
			Tolerance: "0.01",
		},
		Ledger: LedgerConfig{
			Chart:                  ledger.DefaultChart(),
			DiscountMode:           string(ledger.DiscountNet),
			Epsilon:                "0.01",
			BatchSize:              ledger.DefaultBatchSize,
			ProcessingLease:        10 * time.Minute,
			AuditCompressThreshold: postgres.DefaultCompressThreshold,
		},
		Worker: WorkerConfig{
			PostingInterval:   30 * time.Second,
			MaterialInterval:  5 * time.Minute,
			ReconcileInterval: time.Hour,
			MetricsAddr:       ":9091",
		},
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return apperror.NewValidation("database.dsn is required")
	}
	if c.Database.MaxConns < 1 {
		return apperror.NewValidation("database.max_conns must be at least 1")
	}
	if c.Stock.Scale < 0 || c.Stock.Scale > 8 {
		return apperror.NewValidation("stock.scale must be between 0 and 8")
	}
	if _, err := c.Material.ToleranceValue(); err != nil {
		return err
	}
	if _, err := c.Ledger.Policy(); err != nil {
		return err
	}
	if err := c.Ledger.Chart.Validate(); err != nil {
		return err
	}
	if c.Ledger.BatchSize < 1 {
		return apperror.NewValidation("ledger.batch_size must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"worker.posting_interval":   c.Worker.PostingInterval,
		"worker.material_interval":  c.Worker.MaterialInterval,
		"worker.reconcile_interval": c.Worker.ReconcileInterval,
	} {
		if d <= 0 {
			return apperror.NewValidation(name + " must be positive")
		}
	}
	return nil
}

// ToleranceValue parses the material sync tolerance.
func (m MaterialConfig) ToleranceValue() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(m.Tolerance)
	if err != nil || tol.IsNegative() {
		return decimal.Zero, apperror.NewValidation(fmt.Sprintf("material.tolerance %q is not a non-negative decimal", m.Tolerance))
	}
	return tol, nil
}

// Policy converts the posting settings into a ledger.Policy.
func (l LedgerConfig) Policy() (ledger.Policy, error) {
	policy := ledger.Policy{
		DiscountMode: ledger.DiscountMode(l.DiscountMode),
		FeeRates:     make(map[sales.PaymentMethod]decimal.Decimal, len(l.FeeRates)),
	}
	if policy.DiscountMode == "" {
		policy.DiscountMode = ledger.DiscountNet
	}

	for method, raw := range l.FeeRates {
		m, err := sales.ParsePaymentMethod(method)
		if err != nil {
			return ledger.Policy{}, err
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return ledger.Policy{}, apperror.NewValidation(fmt.Sprintf("ledger.fee_rates.%s: %q is not a decimal", method, raw))
		}
		policy.FeeRates[m] = rate
	}

	if l.Epsilon != "" {
		eps, err := decimal.NewFromString(l.Epsilon)
		if err != nil {
			return ledger.Policy{}, apperror.NewValidation(fmt.Sprintf("ledger.epsilon %q is not a decimal", l.Epsilon))
		}
		policy.Epsilon = eps
	}

	if err := policy.Validate(); err != nil {
		return ledger.Policy{}, err
	}
	return policy, nil
}

// PoolConfig maps database settings onto the pool configuration.
func (d DatabaseConfig) PoolConfig() postgres.PoolConfig {
	cfg := postgres.DefaultPoolConfig(d.DSN)
	cfg.MaxConns = d.MaxConns
	cfg.MinConns = d.MinConns
	cfg.MaxConnLifetime = d.MaxConnLifetime
	cfg.MaxConnIdleTime = d.MaxConnIdleTime
	return cfg
}

// LoggerConfig maps log settings onto the logger configuration.
func (l LogConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Development: l.Development}
}
