package router

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/delivery/http/handler"
	"signflow/internal/delivery/http/middleware"
	"signflow/internal/domain/repository"
)

// bodyLimit leaves room for a maximal base64 evidence payload plus the envelope.
const bodyLimit = 2 * 1024 * 1024

type Router struct {
	app              *fiber.App
	config           *config.Config
	identity         repository.IdentityProvider
	metrics          http.Handler
	signatureHandler *handler.SignatureHandler
	healthHandler    *handler.HealthHandler
	logger           *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	identity repository.IdentityProvider,
	metrics http.Handler,
	signatureHandler *handler.SignatureHandler,
	healthHandler *handler.HealthHandler,
	logger *zap.Logger,
) *Router {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    bodyLimit,
		ErrorHandler: handler.ErrorHandler,
	})

	return &Router{
		app:              app,
		config:           cfg,
		identity:         identity,
		metrics:          metrics,
		signatureHandler: signatureHandler,
		healthHandler:    healthHandler,
		logger:           logger,
	}
}

func (r *Router) Setup() *fiber.App {
	// Middleware
	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	if r.config.IsDevelopment() {
		r.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	r.app.Get("/health", r.healthHandler.Health)
	r.app.Get("/metrics", adaptor.HTTPHandler(r.metrics))

	// API v1 routes
	api := r.app.Group("/api/v1", middleware.Authenticate(r.identity, r.logger))
	{
		requests := api.Group("/signature-requests")
		{
			requests.Post("", r.signatureHandler.Create)
			requests.Get("", r.signatureHandler.List)
			requests.Get("/:id", r.signatureHandler.Get)
			requests.Get("/:id/signers", r.signatureHandler.GetSigners)
			requests.Get("/:id/signatures", r.signatureHandler.GetSignatures)
			requests.Get("/:id/activity", r.signatureHandler.GetActivity)
			requests.Get("/:id/can-sign", r.signatureHandler.CanSign)
			requests.Post("/:id/sign", r.signatureHandler.Sign)
			requests.Post("/:id/decline", r.signatureHandler.Decline)
			requests.Post("/:id/cancel", r.signatureHandler.Cancel)
			requests.Post("/:id/preview", r.signatureHandler.Preview)
		}
	}

	return r.app
}

func (r *Router) GetApp() *fiber.App {
	return r.app
}
