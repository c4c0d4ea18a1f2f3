package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/konbase/internal/audit"
	"github.com/khanghh/konbase/internal/auth"
	"github.com/khanghh/konbase/internal/common"
	"github.com/khanghh/konbase/internal/config"
	"github.com/khanghh/konbase/internal/elevation"
	"github.com/khanghh/konbase/internal/handlers/api"
	"github.com/khanghh/konbase/internal/mail"
	"github.com/khanghh/konbase/internal/metrics"
	"github.com/khanghh/konbase/internal/middlewares"
	"github.com/khanghh/konbase/internal/render"
	"github.com/khanghh/konbase/internal/store"
	"github.com/khanghh/konbase/internal/twofactor"
	"github.com/khanghh/konbase/internal/users"
	"github.com/khanghh/konbase/model"
	"github.com/khanghh/konbase/params"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "konbase - two-factor authentication and privilege elevation service"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name:  "version",
			Usage: "Print version information",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "migrate",
			Usage:  "Create or update the database tables and exit",
			Action: migrate,
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func openDialector(driver string, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		// time columns must scan into time.Time
		cfg, err := gomysql.ParseDSN(dsn)
		if err != nil {
			return nil, err
		}
		cfg.ParseTime = true
		return mysql.Open(cfg.FormatDSN()), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedDatabase, driver)
	}
}

func mustInitDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dialector, err := openDialector(dbConfig.Driver, dbConfig.Dsn)
	if err != nil {
		slog.Error("Invalid database config", "error", err)
		os.Exit(1)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replica, err := openDialector(dbConfig.Driver, dsn)
			if err != nil {
				slog.Error("Invalid replica config", "error", err)
				os.Exit(1)
			}
			replicas = append(replicas, replica)
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{Replicas: replicas})); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}
	return db
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	switch mailCfg.Backend {
	case "", "none":
		slog.Warn("No mail backend configured, security notices are disabled")
		return mail.NullMailSender{}
	case "smtp":
		smtpCfg := mailCfg.SMTP
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     smtpCfg.Host,
			Port:     smtpCfg.Port,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			TLS:      smtpCfg.TLS,
			CertFile: smtpCfg.CertFile,
			KeyFile:  smtpCfg.KeyFile,
			CAFile:   smtpCfg.CAFile,
		}, mailCfg.From)
		if err != nil {
			slog.Error("Failed to initialize SMTP mail sender", "error", err)
			os.Exit(1)
		}
		return sender
	default:
		slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
		os.Exit(1)
		return nil
	}
}

// mustInitStorage returns the limiter storage, the attempt counter storage
// and the redis client (nil without redis).
func mustInitStorage(redisCfg config.RedisConfig) (fiber.Storage, store.Storage, goredis.UniversalClient) {
	if redisCfg.URL == "" {
		slog.Warn("No redis configured, using in-memory storage")
		return memory.New(), store.NewMemoryStorage(), nil
	}
	redisStorage := redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
	return redisStorage, store.NewRedisStorage(redisStorage.Conn()), redisStorage.Conn()
}

func migrate(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}
	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.Database)
	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		return err
	}
	slog.Info("Database migrated")
	return nil
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))
	metrics.MustRegister()

	if err := render.Initialize(render.NewEngine(config.TemplateDir), fiber.Map{"siteName": config.SiteName}); err != nil {
		slog.Error("Failed to load templates", "error", err)
		return err
	}
	notifier := mail.NewNotifier(mustInitMailSender(config.Mail))
	db := mustInitDatabase(config.Database)
	limiterStorage, attemptStorage, rdb := mustInitStorage(config.Redis)

	secretCipher, err := twofactor.NewSecretCipher(config.MasterKeyBytes())
	if err != nil {
		slog.Error("Failed to initialize secret cipher", "error", err)
		return err
	}

	// repositories
	var (
		profileRepo        = users.NewProfileRepository(db)
		totpCredentialRepo = users.NewTOTPCredentialRepository(db)
		recoveryKeyRepo    = users.NewRecoveryKeyRepository(db)
		auditLogRepo       = audit.NewAuditLogRepository(db)
	)

	// services
	var (
		auditor          = audit.NewRecorder(auditLogRepo)
		credentialStore  = twofactor.NewCredentialStore(db, totpCredentialRepo, recoveryKeyRepo)
		attemptLimiter   = twofactor.NewAttemptLimiter(attemptStorage)
		tokenVerifier    = auth.NewTokenVerifier(config.Auth.JWTSecret, config.Auth.Audience)
		twoFactorService = twofactor.NewTwoFactorService(db, profileRepo, credentialStore, auditor, secretCipher, notifier, twofactor.Options{
			Issuer:           config.TwoFactor.Issuer,
			Window:           *config.TwoFactor.Window,
			RecoveryKeyCount: config.TwoFactor.RecoveryKeyCount,
		})
	)
	elevationGate, err := elevation.NewGate(db, profileRepo, auditor, notifier, elevation.Options{
		Secret:   config.Elevation.Secret,
		FromRole: config.Elevation.FromRole,
		ToRole:   config.Elevation.ToRole,
	})
	if err != nil {
		slog.Error("Failed to initialize elevation gate", "error", err)
		return err
	}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	router.Use(middlewares.RequestMetrics())

	apiRouter := router.Group("/api", limiter.New(limiter.Config{
		Max:        params.APIRateLimitMax,
		Expiration: params.APIRateLimitWindow,
		Storage:    limiterStorage,
		LimitReached: func(ctx *fiber.Ctx) error {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(api.ErrorResponse{Error: "too many requests"})
		},
	}))
	api.SetupRoutes(
		apiRouter,
		middlewares.Authenticate(tokenVerifier),
		api.NewTwoFactorHandler(twoFactorService, attemptLimiter),
		api.NewElevationHandler(elevationGate),
	)

	appCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go notifier.Run(appCtx)
	go common.StartHealthCheckServer(appCtx, done, config.HealthCheckAddr, rdb, db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
