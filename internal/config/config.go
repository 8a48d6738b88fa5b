package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env       string
		LogFormat string `mapstructure:"log_format"`
		LogLevel  string `mapstructure:"log_level"`
		Timezone  string
	} `mapstructure:"app"`

	HTTP struct {
		Addr         string
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`

	Store struct {
		Driver string
	} `mapstructure:"store"`

	Postgres struct {
		DSN      string
		MaxConns int32 `mapstructure:"max_conns"`
		Migrate  bool
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Notify struct {
		Timeout  time.Duration
		Telegram struct {
			Enabled bool
			Token   string
			ChatID  int64 `mapstructure:"chat_id"`
		} `mapstructure:"telegram"`
		Email struct {
			Enabled bool
			APIKey  string `mapstructure:"api_key"`
			From    string
			To      []string
		} `mapstructure:"email"`
	} `mapstructure:"notify"`

	Stock struct {
		LowStockMargin int64 `mapstructure:"low_stock_margin"`
	} `mapstructure:"stock"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Load reads the YAML file at path (skipped when empty), then lets APP_*
// variables override it, e.g. APP_POSTGRES_DSN for postgres.dsn. A .env file
// in the working directory is loaded into the environment first.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// every key needs a default, otherwise AutomaticEnv cannot see it on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.api_key", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", []string{})
	v.SetDefault("stock.low_stock_margin", 0)
}

func (c Config) Validate() error {
	var problems []error
	switch c.Store.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			problems = append(problems, errors.New("postgres.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.App.LogFormat {
	case "json", "text":
	default:
		problems = append(problems, fmt.Errorf("unknown app.log_format %q", c.App.LogFormat))
	}
	if t := c.Notify.Telegram; t.Enabled && (t.Token == "" || t.ChatID == 0) {
		problems = append(problems, errors.New("notify.telegram needs token and chat_id"))
	}
	if e := c.Notify.Email; e.Enabled && (e.APIKey == "" || e.From == "" || len(e.To) == 0) {
		problems = append(problems, errors.New("notify.email needs api_key, from and to"))
	}
	if c.Stock.LowStockMargin < 0 {
		problems = append(problems, errors.New("stock.low_stock_margin must not be negative"))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("app.timezone: %w", err))
	}
	return errors.Join(problems...)
}
