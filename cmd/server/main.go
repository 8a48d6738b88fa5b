package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Spok95/supply-requests/internal/config"
	"github.com/Spok95/supply-requests/internal/infra/db"
	httpx "github.com/Spok95/supply-requests/internal/infra/http"
	"github.com/Spok95/supply-requests/internal/infra/logger"
	"github.com/Spok95/supply-requests/internal/infra/metrics"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/store"
	"github.com/Spok95/supply-requests/internal/store/memory"
	"github.com/Spok95/supply-requests/internal/store/postgres"
	"github.com/Spok95/supply-requests/internal/workflow"
)

func main() {
	path := "config/example.yaml"
	if p := os.Getenv("APP_CONFIG"); p != "" {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogFormat, cfg.App.LogLevel)
	if loc, err := time.LoadLocation(cfg.App.Timezone); err == nil {
		time.Local = loc
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on exit")
		st = memory.New()
	default:
		if cfg.Postgres.Migrate {
			if err := db.Migrate(cfg.Postgres.DSN); err != nil {
				log.Error("migrations failed", "err", err)
				return
			}
			log.Info("migrations applied")
		}
		pool, err := db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			log.Error("db connect failed", "err", err)
			return
		}
		defer pool.Close()
		log.Info("db connected")
		st = postgres.New(pool)
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	eng := workflow.New(st, workflow.Options{
		Logger:         log,
		Metrics:        m,
		Notifier:       buildNotifier(cfg, log),
		NotifyTimeout:  cfg.Notify.Timeout,
		LowStockMargin: cfg.Stock.LowStockMargin,
	})

	srv := httpx.New(cfg.HTTP.Addr, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, httpx.NewRouter(eng, log, gatherer))
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

// buildNotifier always logs events and adds telegram and email when enabled.
// A channel that cannot be set up is skipped, never fatal.
func buildNotifier(cfg config.Config, log *slog.Logger) notify.Notifier {
	out := notify.Multi{notify.NewLog(log)}

	if t := cfg.Notify.Telegram; t.Enabled {
		api, err := tgbotapi.NewBotAPI(t.Token)
		if err != nil {
			log.Warn("telegram notifications disabled", "err", err)
		} else {
			log.Info("telegram notifications enabled", "bot", api.Self.UserName)
			out = append(out, notify.NewTelegram(api, t.ChatID))
		}
	}
	if e := cfg.Notify.Email; e.Enabled {
		out = append(out, notify.NewEmail(e.APIKey, e.From, e.To))
		log.Info("email notifications enabled", "recipients", len(e.To))
	}
	return out
}
