// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/cache"
	"github.com/amsel-crm/memberportal/internal/config"
	"github.com/amsel-crm/memberportal/internal/db"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/admin"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/handlers"
	"github.com/amsel-crm/memberportal/internal/http/api/front"
	"github.com/amsel-crm/memberportal/internal/jobs"
	"github.com/amsel-crm/memberportal/internal/liff"
	"github.com/amsel-crm/memberportal/internal/logging"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/amsel-crm/memberportal/internal/security"
	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/amsel-crm/memberportal/internal/storage"
	"github.com/amsel-crm/memberportal/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateAdminParams holds inputs for admin creation from the command line.
type CreateAdminParams struct {
	Username    string
	Password    string
	DisplayName string
	Super       bool
}

// loadConfig reads and validates the configuration.
func loadConfig(cfg config.AppConfig) (*config.Config, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	loaded, err := config.Load(configPath, cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	if errValidate := loaded.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return loaded, nil
}

// openDatabase opens the configured database and runs migrations.
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := db.Open(db.Options{DSN: cfg.DSN, TimeZone: cfg.TimeZone, MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	return conn, nil
}

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, cfg config.AppConfig) error {
	loaded, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := openDatabase(loaded.Database)
	if err != nil {
		return err
	}
	log.Info("database migrated")
	return closeDB(conn)
}

// CreateAdmin inserts an admin account, typically the first super admin.
// A blank password is replaced by a generated one, which is returned.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, params CreateAdminParams) (*models.Admin, string, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, "", errors.New("missing username")
	}
	password := strings.TrimSpace(params.Password)
	if password == "" {
		generated, errGen := security.GenerateRandomString(20)
		if errGen != nil {
			return nil, "", errGen
		}
		password = generated
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, "", errHash
	}

	loaded, err := loadConfig(cfg)
	if err != nil {
		return nil, "", err
	}
	conn, err := openDatabase(loaded.Database)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = closeDB(conn) }()

	now := time.Now().UTC()
	row := models.Admin{
		Username:     username,
		Password:     hash,
		DisplayName:  strings.TrimSpace(params.DisplayName),
		Active:       true,
		IsSuperAdmin: params.Super,
		Permissions:  datatypes.JSON("[]"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, "", fmt.Errorf("create admin %s: %w", username, errCreate)
	}
	log.WithFields(log.Fields{"admin_id": row.ID, "username": row.Username, "super": row.IsSuperAdmin}).Info("admin created")
	return &row, password, nil
}

// buildCache returns the profile cache and, for the memory driver, the purger the jobs sweep.
func buildCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, jobs.Purger, io.Closer, error) {
	switch cfg.Driver {
	case "redis":
		client, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.Prefix, cfg.MaxAge)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, client, nil
	default:
		memory := cache.NewMemory(nil)
		return memory, memory, nil, nil
	}
}

// buildImageStore returns the receipt image store.
func buildImageStore(ctx context.Context, cfg config.StorageConfig) (storage.ImageStore, error) {
	if cfg.Driver == "s3" {
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	}
	return storage.NewLocal(util.ResolveWritable(cfg.LocalDir))
}

// RouterDeps carries the components the HTTP router needs.
type RouterDeps struct {
	Config   *config.Config
	DB       *gorm.DB
	Front    front.Deps
	Receipts *receipt.Service
}

// NewRouter builds the gin engine with middleware and every route group.
func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(apphttp.Recovery(), apphttp.RequestLogger(), apphttp.CORS(deps.Config.Server.AllowedOrigins))
	engine.Use(apphttp.BodyLimit(deps.Config.Server.BodyLimitMB << 20))

	engine.GET("/healthz", handlers.NewHealthHandler(deps.DB).Healthz)

	frontDeps := deps.Front
	frontDeps.DB = deps.DB
	frontDeps.Receipts = deps.Receipts
	front.RegisterFrontRoutes(engine, frontDeps)
	admin.RegisterAdminRoutes(engine, admin.Deps{
		DB:       deps.DB,
		JWT:      deps.Config.JWT,
		Receipts: deps.Receipts,
	})

	engine.NoRoute(func(c *gin.Context) {
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "not found")
	})
	return engine
}

// RunServer boots the member portal API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	loaded, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	logCloser, errLog := logging.Setup(loaded.Logging)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := openDatabase(loaded.Database)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB(conn) }()
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("initial settings load failed, using defaults")
	}

	profiles, purger, cacheCloser, err := buildCache(ctx, loaded.Cache)
	if err != nil {
		return err
	}
	if cacheCloser != nil {
		defer func() { _ = cacheCloser.Close() }()
	}

	images, err := buildImageStore(ctx, loaded.Storage)
	if err != nil {
		return err
	}

	verifier := liff.NewVerifier(loaded.LIFF.APIBase, loaded.LIFF.LIFFID, loaded.LIFF.ChannelID, loaded.LIFF.Timeout)
	members := backend.New(loaded.Backend.BaseURL, loaded.Backend.Timeout)
	if !verifier.Configured() {
		log.Warn("LIFF channel not configured; member routes will answer open_in_line")
	}
	if !members.Configured() {
		log.Warn("loyalty backend URL not configured; member routes will answer backend_unavailable")
	}
	receipts := receipt.NewService(conn, images)

	if gin.Mode() != gin.TestMode && loaded.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := NewRouter(RouterDeps{
		Config: loaded,
		DB:     conn,
		Front: front.Deps{
			Identity: verifier,
			Backend:  members,
			Cache:    profiles,
		},
		Receipts: receipts,
	})

	scheduler, errJobs := jobs.Start(ctx, jobs.Options{DB: conn, Cache: purger})
	if errJobs != nil {
		return errJobs
	}
	defer func() { _ = scheduler.Stop() }()

	server := &http.Server{
		Addr:              loaded.Server.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("listen", loaded.Server.Listen).Info("member portal listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			serveErr <- errServe
		}
		close(serveErr)
	}()

	select {
	case errServe, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), loaded.Server.ShutdownGrace)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("http shutdown: %w", errShutdown)
	}
	return nil
}

func closeDB(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
