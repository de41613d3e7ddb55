package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/modules/auth/auth"
	"github.com/contactly/core/internal/modules/auth/limiter"
	"github.com/contactly/core/internal/modules/auth/otpstore"
	"github.com/contactly/core/internal/modules/auth/recovery"
	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/modules/auth/session"
	"github.com/contactly/core/internal/modules/contact"
	"github.com/contactly/core/internal/modules/feedback"
	"github.com/contactly/core/internal/modules/health"
	"github.com/contactly/core/internal/modules/label"
	"github.com/contactly/core/internal/modules/notify"
	"github.com/contactly/core/internal/modules/user"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/mail"
	"github.com/contactly/core/internal/pkg/otp"
	"github.com/contactly/core/internal/pkg/response"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(signer *credential.Signer, codec *otp.Codec, queue *taskqueue.Service, sender *mail.Sender) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Auth primitives shared across modules.
	ledger := revocation.New(a.rc)
	registry := session.NewRegistry(a.rc)
	gates := limiter.New(a.rc)
	codes := otpstore.New(a.rc, codec)
	userStore := user.NewStore(a.db)
	resolver := clientinfo.NewResolver(a.cfg.Geo.Endpoint)
	cookies := auth.CookieWriter{Domain: a.cfg.CookieDomain, Secure: !a.cfg.IsDev()}

	notify.RegisterHandlers(queue, sender, a.db, a.logger)

	authMW := middleware.Auth(signer, ledger, registry)

	r.Use(middleware.OptionalAuth(signer, ledger, registry))
	r.Use(middleware.RateLimit(a.rc))
	r.Use(middleware.Idempotence(a.rc))

	api := r.Group(apiPrefix)

	appInfo := gin.H{
		"name":    "contactly-core",
		"version": "1.0.0",
	}
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(a.startTime())
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	health.NewHandler(a.db.Client(), a.rc).RegisterRoutes(api)

	// Auth & account
	authSvc := auth.NewService(userStore, signer, codes, registry, ledger, gates, queue, a.logger)
	auth.NewHandler(authSvc, cookies, resolver).RegisterRoutes(api, authMW)
	auth.NewOAuthHandler(authSvc, a.cfg.OAuth, cookies, resolver).RegisterRoutes(api)

	recoverySvc := recovery.NewService(userStore, signer, codes, ledger, gates, queue, a.logger)
	recovery.NewHandler(recoverySvc, cookies, resolver).RegisterRoutes(api)

	// Address book
	contactSvc := contact.NewService(a.db)
	labelSvc := label.NewService(a.db, contactSvc)
	feedbackSvc := feedback.NewService(a.db)

	contact.NewHandler(contactSvc).RegisterRoutes(api, authMW)
	label.NewHandler(labelSvc).RegisterRoutes(api, authMW)
	feedback.NewHandler(feedbackSvc).RegisterRoutes(api, authMW)

	// Account profile and lifecycle
	userSvc := user.NewService(userStore, signer, ledger, registry,
		[]user.OwnedPurger{contactSvc, labelSvc, feedbackSvc}, a.logger)
	user.NewHandler(userSvc, cookies).RegisterRoutes(api, authMW)
}
