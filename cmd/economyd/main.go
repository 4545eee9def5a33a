package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Dave-Sleek/promptshare-economy/internal/httpserver"
	"github.com/Dave-Sleek/promptshare-economy/internal/store/gormstore"
	"github.com/Dave-Sleek/promptshare-economy/internal/store/pgstore"
	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagTokenSigningKey = "token-signing-key"
	flagTokenIssuer     = "token-issuer"
	flagWebhookSecret   = "webhook-secret"
	flagAllowedOrigins  = "allowed-origins"
	flagStoreDriver     = "store-driver"

	configKeyDatabaseURL     = "database_url"
	configKeyListenAddr      = "listen_addr"
	configKeyTokenSigningKey = "token_signing_key"
	configKeyTokenIssuer     = "token_issuer"
	configKeyWebhookSecret   = "webhook_secret"
	configKeyAllowedOrigins  = "allowed_origins"
	configKeyStoreDriver     = "store_driver"

	defaultDatabaseURL = "sqlite:///tmp/economy.db"
	defaultListenAddr  = ":9090"

	storeDriverPgx  = "pgx"
	storeDriverGorm = "gorm"
)

type runtimeConfig struct {
	DatabaseURL     string
	ListenAddr      string
	TokenSigningKey string
	TokenIssuer     string
	WebhookSecret   string
	AllowedOrigins  string
	StoreDriver     string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "economyd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "economyd",
		Short:         "PromptShare coin economy server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagTokenSigningKey, "", "HMAC key for session bearer tokens")
	cmd.Flags().String(flagTokenIssuer, "", "expected issuer of session bearer tokens")
	cmd.Flags().String(flagWebhookSecret, "", "shared secret for payment and accrual webhooks")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated CORS origins")
	cmd.Flags().String(flagStoreDriver, storeDriverPgx, "postgres access layer: pgx or gorm")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:     "DATABASE_URL",
		configKeyListenAddr:      "LISTEN_ADDR",
		configKeyTokenSigningKey: "TOKEN_SIGNING_KEY",
		configKeyTokenIssuer:     "TOKEN_ISSUER",
		configKeyWebhookSecret:   "WEBHOOK_SECRET",
		configKeyAllowedOrigins:  "ALLOWED_ORIGINS",
		configKeyStoreDriver:     "STORE_DRIVER",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL:     flagDatabaseURL,
		configKeyListenAddr:      flagListenAddr,
		configKeyTokenSigningKey: flagTokenSigningKey,
		configKeyTokenIssuer:     flagTokenIssuer,
		configKeyWebhookSecret:   flagWebhookSecret,
		configKeyAllowedOrigins:  flagAllowedOrigins,
		configKeyStoreDriver:     flagStoreDriver,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.TokenSigningKey = viper.GetString(configKeyTokenSigningKey)
	cfg.TokenIssuer = viper.GetString(configKeyTokenIssuer)
	cfg.WebhookSecret = viper.GetString(configKeyWebhookSecret)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.StoreDriver = viper.GetString(configKeyStoreDriver)
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = storeDriverPgx
	}

	if cfg.TokenSigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if cfg.StoreDriver != storeDriverPgx && cfg.StoreDriver != storeDriverGorm {
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, catalog, cleanup, err := openStores(ctx, cfg.DatabaseURL, cfg.StoreDriver)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	clock := func() time.Time { return time.Now().UTC() }
	service, err := economy.NewService(store, catalog, clock,
		economy.WithOperationLogger(&zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("economy service init: %w", err)
	}

	serverConfig := httpserver.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		TokenSigningKey: cfg.TokenSigningKey,
		TokenIssuer:     cfg.TokenIssuer,
		WebhookSecret:   cfg.WebhookSecret,
	}
	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	return httpserver.Run(ctx, serverConfig, service, logger)
}

// openStores resolves the DSN to a store implementation and prepares the
// schema. Postgres uses the raw pgx store unless the gorm driver is selected;
// everything else is treated as a SQLite path for local runs.
func openStores(ctx context.Context, dsn string, driver string) (economy.Store, economy.Catalog, func(), error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if driver == storeDriverGorm {
			return openGormStores(ctx, postgres.Open(dsn))
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.New(pool), pgstore.NewCatalog(pool), pool.Close, nil
	}

	sqlitePath, err := resolveSQLitePath(dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	return openGormStores(ctx, sqlite.Open(sqlitePath))
}

func openGormStores(ctx context.Context, dialector gorm.Dialector) (economy.Store, economy.Catalog, func(), error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := gormstore.Migrate(db); err != nil {
		return nil, nil, nil, err
	}
	if err := gormstore.SeedDefaultGifts(ctx, db); err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = sqlDB.Close() }
	return gormstore.New(db.WithContext(ctx)), gormstore.NewCatalog(db.WithContext(ctx)), cleanup, nil
}

func resolveSQLitePath(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "economy.db"
		}
		return normalizeSQLitePath(path)
	}
	// Treat everything else as a direct sqlite path.
	return normalizeSQLitePath(dsn)
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// zapOperationLogger bridges economy operation callbacks onto zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger *zapOperationLogger) LogOperation(_ context.Context, entry economy.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.PeerID != "" {
		fields = append(fields, zap.String("peer_id", entry.PeerID))
	}
	if entry.RelatedID != "" {
		fields = append(fields, zap.String("related_id", entry.RelatedID))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("economy operation failed", fields...)
		return
	}
	operationLogger.logger.Info("economy operation", fields...)
}
