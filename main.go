package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"reportit/config"
	"reportit/controllers"
	"reportit/export"
	"reportit/jobs"
	"reportit/logger"
	"reportit/metrics"
	"reportit/middleware"
	"reportit/ratelimit"
	"reportit/routes"
	"reportit/services"
	"reportit/storage"
	"reportit/store"
	"reportit/store/memory"
	"reportit/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("Starting Report-It", zap.String("env", cfg.Env), zap.String("gin_mode", gin.Mode()))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	db, client, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if client != nil {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				log.Warn("Mongo disconnect failed", zap.Error(err))
			}
		}()
	}

	objects, err := openObjects(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter := openLimiter(cfg, log)

	var mailer services.Notifier
	if cfg.SMTPHost != "" {
		mailer = utils.NewMailer(utils.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	notices := services.NewAdminNotices(mailer, cfg.AdminNotifyList(), log)

	loc := cfg.Location()
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.SessionDuration())
	ledger := services.NewLedger(db, log)
	audit := services.NewAuditor(db, log)
	auth := services.NewAuthService(db, ledger, audit, tokens, notices, log, services.AuthConfig{
		BcryptCost: cfg.BcryptCost,
		SessionTTL: cfg.SessionDuration(),
	})
	gate := services.NewDeviceGate(db, auth, notices, log)
	admin := services.NewAdminService(db, ledger, audit, log)
	appender := export.NewAppender(objects, cfg.SheetObjectKey, loc)
	reports := services.NewReportService(db, objects, appender, audit, log, loc)

	if cfg.AdminEmail != "" {
		created, err := auth.SeedAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			log.Info("Bootstrap admin created", zap.String("email", cfg.AdminEmail))
		}
	}

	runner := jobs.NewRunner(admin, notices, reports, loc, log)
	scheduler, err := runner.Start(cfg.DigestAt)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	router := gin.New()
	rm := middleware.NewRequestMiddleware(log)
	router.Use(rm.ProcessRequest(), rm.RecoverPanic(), middleware.PrometheusMiddleware())
	router.Use(cors.New(corsConfig(cfg.CORSOriginList())))
	router.GET("/metrics", middleware.MetricsHandler(prometheus.DefaultGatherer, cfg.MetricsAllowIP))

	secureCookie := cfg.Env == "production"
	err = routes.InitializeRoutes(router, routes.Handlers{
		Tokens:         tokens,
		Limiter:        limiter,
		Logger:         log,
		TrustedProxies: cfg.TrustedProxyList(),
		Auth:           controllers.NewAuthController(auth, cfg.SessionDuration(), secureCookie),
		Devices:        controllers.NewDeviceController(gate, reports),
		Reports:        controllers.NewReportController(reports),
		Admin:          controllers.NewAdminController(admin, reports),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, *mongo.Client, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), nil, nil
	}

	client, database, err := config.ConnectDatabase(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	m := store.NewMongo(database)
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	return m, client, nil
}

func openObjects(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.S3Endpoint == "" {
		log.Info("Storing objects on disk", zap.String("dir", cfg.UploadDir))
		return storage.NewLocalStore(cfg.UploadDir)
	}
	s, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("Storing objects in bucket", zap.String("bucket", cfg.S3Bucket))
	return s, nil
}

func openLimiter(cfg *config.Config, log *zap.Logger) ratelimit.Limiter {
	if cfg.LoginRateLimit == 0 {
		log.Warn("Login rate limiting disabled")
		return nil
	}
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.LoginRateLimit, cfg.RateWindow())
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	log.Info("Rate limiting through Redis", zap.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedis(client, "reportit:rl", cfg.LoginRateLimit, cfg.RateWindow())
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
