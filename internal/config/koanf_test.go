package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/sales"
)

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"STOCKLEDGER_DATABASE__DSN", "database.dsn"},
		{"STOCKLEDGER_LEDGER__FEE_RATES__CARD", "ledger.fee_rates.card"},
		{"STOCKLEDGER_WORKER__POSTING_INTERVAL", "worker.posting_interval"},
		{"STOCKLEDGER_CONFIG", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envTransformFunc(tt.in), tt.in)
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://file/db
  max_conns: 4
ledger:
  discount_mode: gross
  fee_rates:
    card: "0.02"
  revenue_rules:
    - name: drinks
      expression: 'lines.exists(l, l.category == "beverages")'
      account: "4100"
material:
  patterns:
    - category: flour
      patterns: ["flour", "meal"]
`), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("STOCKLEDGER_DATABASE__DSN", "postgres://env/db")
	t.Setenv("STOCKLEDGER_WORKER__POSTING_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.DSN, "env wins over file")
	assert.EqualValues(t, 4, cfg.Database.MaxConns, "file wins over defaults")
	assert.Equal(t, 5*time.Second, cfg.Worker.PostingInterval)
	assert.Equal(t, time.Hour, cfg.Worker.ReconcileInterval)
	assert.Equal(t, ledger.DefaultChart(), cfg.Ledger.Chart)
	require.Len(t, cfg.Ledger.RevenueRules, 1)
	assert.Equal(t, "4100", cfg.Ledger.RevenueRules[0].Account)
	require.Len(t, cfg.Material.Patterns, 1)
	assert.Equal(t, []string{"flour", "meal"}, cfg.Material.Patterns[0].Patterns)

	policy, err := cfg.Ledger.Policy()
	require.NoError(t, err)
	assert.Equal(t, ledger.DiscountGross, policy.DiscountMode)
	assert.Equal(t, "0.02", policy.FeeRates[sales.MethodCard].String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Database.DSN = "postgres://localhost/stock"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad scale", func(c *Config) { c.Stock.Scale = -1 }},
		{"bad tolerance", func(c *Config) { c.Material.Tolerance = "lots" }},
		{"unknown fee method", func(c *Config) { c.Ledger.FeeRates = map[string]string{"cheque": "0.01"} }},
		{"fee rate out of range", func(c *Config) { c.Ledger.FeeRates = map[string]string{"card": "1"} }},
		{"unknown discount mode", func(c *Config) { c.Ledger.DiscountMode = "sideways" }},
		{"unmapped payment account", func(c *Config) { c.Ledger.Chart.MobileMoney = "" }},
		{"zero interval", func(c *Config) { c.Worker.MaterialInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			_, ok := apperror.AsAppError(err)
			assert.True(t, ok)
		})
	}
}
