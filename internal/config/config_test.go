package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.yaml", `
app:
  env: dev
  log_format: text
http:
  addr: ":9000"
  read_timeout: 3s
store:
  driver: postgres
postgres:
  dsn: postgres://file
notify:
  email:
    enabled: true
    api_key: key
    from: engine@example.com
    to: [ops@example.com]
stock:
  low_stock_margin: 4
`)
	t.Setenv("APP_POSTGRES_DSN", "postgres://env")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Postgres.DSN != "postgres://env" {
		t.Fatalf("Expected env override, got %q", c.Postgres.DSN)
	}
	if c.App.Env != "dev" || c.App.LogFormat != "text" || c.HTTP.Addr != ":9000" {
		t.Fatalf("unexpected app/http config %+v %+v", c.App, c.HTTP)
	}
	if c.HTTP.ReadTimeout != 3*time.Second || c.HTTP.WriteTimeout != 60*time.Second {
		t.Fatalf("unexpected timeouts %v %v", c.HTTP.ReadTimeout, c.HTTP.WriteTimeout)
	}
	if c.Postgres.MaxConns != 10 || !c.Postgres.Migrate {
		t.Fatalf("Expected postgres defaults, got %+v", c.Postgres)
	}
	if len(c.Notify.Email.To) != 1 || c.Stock.LowStockMargin != 4 {
		t.Fatalf("unexpected notify/stock config %+v %+v", c.Notify.Email, c.Stock)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "APP_STORE_DRIVER=memory\n")
	t.Setenv("APP_STORE_DRIVER", "")
	_ = os.Unsetenv("APP_STORE_DRIVER")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.Driver != DriverMemory {
		t.Fatalf("Expected memory driver from .env, got %q", c.Store.Driver)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.App.LogFormat = "json"
		c.App.Timezone = "UTC"
		c.Store.Driver = DriverMemory
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory ok", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, true},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true; c.Notify.Telegram.ChatID = 1 }, true},
		{"email without recipients", func(c *Config) {
			c.Notify.Email.Enabled = true
			c.Notify.Email.APIKey = "k"
			c.Notify.Email.From = "a@example.com"
		}, true},
		{"bad log format", func(c *Config) { c.App.LogFormat = "xml" }, true},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, true},
		{"negative margin", func(c *Config) { c.Stock.LowStockMargin = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
