package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"assist/internal/app/server/handlers"
	"assist/internal/config"
	"assist/internal/core/services"
	"assist/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	engine        *gin.Engine
	http          *http.Server
	log           *slog.Logger
	cfg           *config.Config
	ticketHandler *handlers.TicketHandler
	widgetHandler *handlers.WidgetHandler
	tenantHandler *handlers.TenantHandler
	wsHandler     *handlers.WSHandler
	tokenSvc      *services.TokenService
	health        HealthCheck
}

func NewServer(
	cfg *config.Config,
	log *slog.Logger,
	ticketSvc *services.TicketService,
	tenantSvc *services.TenantService,
	tokenSvc *services.TokenService,
	managerSvc services.IManagerService,
	health HealthCheck,
) *Server {
	handlers.RegisterValidators()
	s := &Server{
		engine:        gin.New(),
		log:           log,
		cfg:           cfg,
		ticketHandler: handlers.NewTicketHandler(ticketSvc),
		widgetHandler: handlers.NewWidgetHandler(ticketSvc, tenantSvc),
		tenantHandler: handlers.NewTenantHandler(tenantSvc),
		wsHandler:     handlers.NewWSHandler(managerSvc, tenantSvc, tokenSvc, cfg.CORS.AllowOrigins),
		tokenSvc:      tokenSvc,
		health:        health,
	}
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Service.Add,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

func (s *Server) routes() {
	s.engine.Use(
		gin.Recovery(),
		middleware.TracerMiddleware(s.cfg.Service.Name),
		middleware.RequestLogger(s.log),
		cors.New(corsConfig(s.cfg.CORS.AllowOrigins)),
	)
	auth := middleware.AuthMiddleware(s.tokenSvc)

	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/ws", s.wsHandler.Handler)

	api := s.engine.Group("/api/assist")

	// Embedded widget, public
	widget := api.Group("/widget/:appKey")
	widget.GET("/settings", s.widgetHandler.Settings)
	widget.POST("/tickets", s.widgetHandler.CreateTicket)
	visitor := widget.Group("/visitors/:visitorId/tickets")
	visitor.GET("", s.widgetHandler.List)
	visitor.GET("/:ticketId", s.widgetHandler.Get)
	visitor.GET("/:ticketId/messages", s.widgetHandler.Messages)
	visitor.POST("/:ticketId/messages", s.widgetHandler.PostMessage)
	visitor.POST("/:ticketId/images", s.widgetHandler.PostImages)
	visitor.PATCH("/:ticketId/visitor", s.widgetHandler.UpdateVisitor)

	// Tenant accounts
	account := api.Group("", auth)
	account.POST("/key", s.tenantHandler.GenerateKey)
	account.GET("/settings", s.tenantHandler.Settings)
	account.PATCH("/settings", s.tenantHandler.UpdateSettings)
	account.GET("/tickets", s.ticketHandler.List)
	account.GET("/tickets/:ticketId", s.ticketHandler.Get)
	account.GET("/tickets/:ticketId/messages", s.ticketHandler.Messages)
	account.POST("/tickets/:ticketId/messages", s.ticketHandler.PostMessage)
	account.POST("/tickets/:ticketId/images", s.ticketHandler.PostImages)
	account.PATCH("/tickets/:ticketId/status", s.ticketHandler.ToggleStatus)
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
