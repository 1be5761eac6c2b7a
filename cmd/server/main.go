package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/collabhub/collabhub/internal/api"
	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/health"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/maintenance"
	"github.com/collabhub/collabhub/internal/metrics"
	"github.com/collabhub/collabhub/internal/notifier"
	"github.com/collabhub/collabhub/internal/storage"
	"github.com/collabhub/collabhub/pkg/config"
)

var (
	configFile string
	envFile    string
	address    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "collabhub-server",
	Short: "CollabHub API server",
	Long: `CollabHub Server hosts the REST API where users post ideas
and form projects around them.`,
	SilenceUsage: true,
	RunE:         runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString("collabhub-server"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves file, dotenv, environment and flag settings in that order.
func loadConfig() (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg *Config
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	// Override with CLI flags
	if address != "" {
		cfg.Server.Address = address
	}
	cfg.Verbose = verbose

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	durations, _ := cfg.ParseDurations()

	// Auto-create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := store.EnsureAdminUser(cfg.Auth.BcryptCost); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	logger.Infof("database initialized at %s", cfg.Database.Path)

	deps := api.Deps{}
	var checkers []health.Checker
	checkers = append(checkers, health.NewSQLiteChecker(store.DB()))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}

		deps.Lockout = auth.NewRedisLockoutStore(rdb, cfg.Auth.LockoutThreshold, durations.LockoutDuration)
		checkers = append(checkers, health.NewRedisChecker(rdb))
		logger.Infof("login lockout state shared via redis at %s", cfg.Redis.Addr)
	}

	var mailer auth.Mailer = notifier.LogMailer{}
	if cfg.SMTP.Host != "" {
		smtpMailer, err := notifier.NewSMTPMailer(notifier.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return fmt.Errorf("create mailer: %w", err)
		}
		mailer = smtpMailer
	} else {
		logger.Warnf("smtp.host not set; password reset links will only be logged")
	}
	deps.Mailer = notifier.NewThrottle(mailer, notifier.RateLimitConfig{
		MaxPerWindow: cfg.RateLimit.MailPerHour,
		Window:       time.Hour,
		Enabled:      true,
	})

	srv, err := api.New(&api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        []byte(cfg.Auth.JWTSecret),
		CORSOrigins:      cfg.Server.CORSOrigins,
		TrustedProxies:   cfg.Server.TrustedProxies,
		HTTPTLSEnabled:   cfg.Server.TLS.Enabled,
		HTTPTLSCertFile:  cfg.Server.TLS.CertFile,
		HTTPTLSKeyFile:   cfg.Server.TLS.KeyFile,
		AccessTokenTTL:   durations.AccessTokenTTL,
		RefreshTokenTTL:  durations.RefreshTokenTTL,
		BcryptCost:       cfg.Auth.BcryptCost,
		RateLimitPerIP:   cfg.RateLimit.PerIP,
		AuthRateWindow:   durations.IPWindow,
		RateLimitPerUser: cfg.RateLimit.PerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  durations.LockoutDuration,
		ResetURL:         cfg.Auth.ResetURL,
		Verbose:          cfg.Verbose,
	}, store, deps)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	for _, c := range checkers {
		srv.RegisterHealthChecker(c)
	}

	scheduler, err := maintenance.NewScheduler(store, cfg.Maintenance.Schedule)
	if err != nil {
		return err
	}

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("starting collabhub-server %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Address)
		g.Go(ms.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ms.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	logger.Infof("server stopped")
	return nil
}
