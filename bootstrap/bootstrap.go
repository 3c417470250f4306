// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowdesk/aimeter/adapters/clock"
	"github.com/glowdesk/aimeter/adapters/credits"
	"github.com/glowdesk/aimeter/adapters/email"
	"github.com/glowdesk/aimeter/adapters/hasher"
	apihttp "github.com/glowdesk/aimeter/adapters/http"
	"github.com/glowdesk/aimeter/adapters/idgen"
	"github.com/glowdesk/aimeter/adapters/metrics"
	"github.com/glowdesk/aimeter/adapters/payment"
	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/glowdesk/aimeter/app"
	"github.com/glowdesk/aimeter/config"
	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
	"github.com/rs/zerolog"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Meter      *app.MeterService

	usageRecorder ports.UsageRecorder
}

// New creates and initializes the application from a config file path.
// An empty path falls back to environment-only configuration.
func New(configPath string) (*App, error) {
	logger := setupLogger()

	holder, err := newHolder(configPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger = loggerFromConfig(cfg)
	logger.Info().Str("version", Version).Msg("initializing aimeter")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.DB = db
	logger.Info().Str("dsn", cfg.Database.DSN).Msg("database ready")

	if cfg.Metrics.IsEnabled() {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	usageStore := sqlite.NewUsageStore(db)
	limitStore := sqlite.NewLimitStore(db)
	tokenStore := sqlite.NewTokenStore(db)

	resolver, err := buildCreditResolver(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	alertSender, err := email.NewSender(email.Config{
		Provider: cfg.Email.Provider,
		SMTP: email.SMTPConfig{
			Host:              cfg.Email.SMTP.Host,
			Port:              cfg.Email.SMTP.Port,
			Username:          cfg.Email.SMTP.Username,
			Password:          cfg.Email.SMTP.Password,
			From:              cfg.Email.SMTP.From,
			FromName:          cfg.Email.SMTP.FromName,
			RecipientTemplate: cfg.Email.SMTP.RecipientTemplate,
			AppName:           cfg.Email.AppName,
		},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("email sender: %w", err)
	}

	reporter, err := payment.NewReporter(payment.Config{
		Mode:      cfg.Overage.Mode,
		StripeKey: cfg.Overage.StripeKey,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("overage reporter: %w", err)
	}

	if cfg.Usage.Mode == "buffered" {
		a.usageRecorder = NewBufferedRecorder(usageStore, cfg.Usage.BatchSize, cfg.Usage.FlushInterval, logger)
		logger.Info().
			Int("batch_size", cfg.Usage.BatchSize).
			Dur("flush_interval", cfg.Usage.FlushInterval).
			Msg("buffered usage recording enabled")
	}

	a.Meter = app.NewMeterService(app.MeterDeps{
		Limits:   limitStore,
		Events:   usageStore,
		Credits:  resolver,
		Alerts:   alertSender,
		Overage:  reporter,
		Recorder: a.usageRecorder,
		Clock:    clock.Real{},
		IDs:      idgen.UUID{},
		Pricing:  usage.Pricing{Margin: cfg.Pricing.Margin, USDToEUR: cfg.Pricing.USDToEUR},
		Logger:   logger,
		Metrics:  a.Metrics,
	})

	// Pricing follows config hot reloads; everything else needs a restart.
	holder.OnChange(func(c *config.Config) {
		p := usage.Pricing{Margin: c.Pricing.Margin, USDToEUR: c.Pricing.USDToEUR}
		if err := a.Meter.SetPricing(p); err != nil {
			logger.Error().Err(err).Msg("rejected reloaded pricing")
		}
	})

	auth := apihttp.NewTokenAuth(tokenStore, hasher.NewBcrypt(0), logger)
	handler := apihttp.NewMeterHandler(a.Meter, logger)
	router := apihttp.NewRouter(handler, auth, logger, apihttp.RouterConfig{
		Metrics: a.Metrics,
		Version: Version,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func newHolder(configPath string, logger zerolog.Logger) (*config.Holder, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return config.NewHolder(configPath, logger)
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	return config.NewStaticHolder(cfg), nil
}

func buildCreditResolver(cfg *config.Config) (ports.CreditResolver, error) {
	switch cfg.Credits.Mode {
	case "remote":
		return credits.NewRemote(credits.RemoteConfig{
			BaseURL: cfg.Credits.Remote.URL,
			APIKey:  cfg.Credits.Remote.APIKey,
			Timeout: cfg.Credits.Remote.Timeout,
		}), nil
	case "static", "":
		return credits.NewStatic(cfg.Credits.DefaultEur, cfg.Credits.PerUser), nil
	default:
		return nil, fmt.Errorf("unknown credits mode: %s", cfg.Credits.Mode)
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}
	a.Config.WatchSignals()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.usageRecorder != nil {
		if err := a.usageRecorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// setupLogger builds the pre-config logger from environment variables.
func setupLogger() zerolog.Logger {
	levelStr := os.Getenv("AIMETER_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("AIMETER_LOG_FORMAT") == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loggerFromConfig rebuilds the logger once full config is available.
func loggerFromConfig(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
