package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/contactly/core/internal/config"
	"github.com/contactly/core/internal/database"
	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/mail"
	"github.com/contactly/core/internal/pkg/otp"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *mongo.Database
	rc     *cache.Redis
	logger *zap.Logger
	cancel context.CancelFunc
}

// New initializes the application: config validation, Mongo, Redis, the
// credential signer, the job worker and finally the route table.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	signer, err := credential.NewSigner(credential.Secrets{
		Access:         cfg.Secrets.Access,
		Refresh:        cfg.Secrets.Refresh,
		Recover:        cfg.Secrets.Recover,
		Activation:     cfg.Secrets.Activation,
		PasswordChange: cfg.Secrets.PasswordChange,
	})
	if err != nil {
		return nil, fmt.Errorf("credential signer: %w", err)
	}

	codec, err := otp.NewCodec(cfg.Secrets.OTP)
	if err != nil {
		return nil, fmt.Errorf("otp codec: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(buildCORS(cfg))

	queue := taskqueue.NewService(rc, logger)
	sender := mail.New(cfg.Mail, logger)

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger, cancel: cancel}
	app.registerRoutes(signer, codec, queue, sender)

	go queue.Run(ctx)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the background worker.
func (a *App) Shutdown() { a.cancel() }

func (a *App) startTime() time.Time { return processStart }

var processStart = time.Now()
