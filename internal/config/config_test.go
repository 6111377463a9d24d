package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
cart:
  dedupe_window: 5s
payment:
  promptpay_id: "081-234-5678"
notify:
  driver: noop
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.AdminServer.Port)
	assert.Equal(t, 5*time.Second, cfg.Cart.DedupeWindow)
	assert.Equal(t, "081-234-5678", cfg.Payment.PromptPayID)
	assert.Equal(t, "noop", cfg.Notify.Driver)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("BUNDLESHOP_PAYMENT_PROMPTPAY_ID", "0899999999")
	t.Setenv("BUNDLESHOP_ORDER_STRICT_STOCK_CHECK", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0899999999", cfg.Payment.PromptPayID)
	assert.True(t, cfg.Order.StrictStockCheck)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Notify.Driver = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MySQL.DSN = ""
	assert.Error(t, cfg.Validate())
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", ServerConfig{Port: 8080}.Addr())
	assert.Equal(t, "127.0.0.1:1", ServerConfig{Host: "127.0.0.1", Port: 1}.Addr())
}
