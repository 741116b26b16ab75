package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/muyusufspa/spgpt/internal/auth"
	"github.com/muyusufspa/spgpt/internal/config"
	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/internal/engine"
	"github.com/muyusufspa/spgpt/internal/lookup"
	"github.com/muyusufspa/spgpt/internal/prefs"
	"github.com/muyusufspa/spgpt/internal/qa"
	"github.com/muyusufspa/spgpt/internal/store"
	"go.uber.org/zap"
)

// Server is the HTTP adapter over the conversation engine and the
// supporting services.
type Server struct {
	config     config.ServerConfig
	httpServer *http.Server
	router     *gin.Engine

	sessions  *auth.Manager
	users     *store.Store
	prefs     *prefs.Store
	qa        *qa.Service
	airports  *lookup.AirportClient
	approvers *lookup.ApproverClient

	extractor engine.Extractor
	poster    engine.Poster
	activity  engine.ActivityLogger

	mu      sync.Mutex
	engines map[string]*engine.Engine

	logger *zap.Logger
}

// Deps bundles everything the server needs.
type Deps struct {
	Sessions  *auth.Manager
	Users     *store.Store
	Prefs     *prefs.Store
	QA        *qa.Service
	Airports  *lookup.AirportClient
	Approvers *lookup.ApproverClient
	Extractor engine.Extractor
	Poster    engine.Poster
	Activity  engine.ActivityLogger
}

// New creates the HTTP server and wires all routes.
func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:    cfg,
		router:    gin.New(),
		sessions:  deps.Sessions,
		users:     deps.Users,
		prefs:     deps.Prefs,
		qa:        deps.QA,
		airports:  deps.Airports,
		approvers: deps.Approvers,
		extractor: deps.Extractor,
		poster:    deps.Poster,
		activity:  deps.Activity,
		engines:   make(map[string]*engine.Engine),
		logger:    logger,
	}

	registerValidations()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// registerValidations installs custom binding rules.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("servicetype", func(fl validator.FieldLevel) bool {
			return entity.ServiceType(fl.Field().String()).IsValid()
		})
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(corsMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")

	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("")
	authed.Use(s.authRequired())
	{
		authed.POST("/auth/logout", s.handleLogout)
		authed.GET("/auth/session", s.handleSession)

		authed.POST("/invoice/upload", s.handleUpload)
		authed.POST("/invoice/message", s.handleMessage)
		authed.POST("/invoice/rsaf", s.handleRSAF)
		authed.POST("/invoice/routing", s.handleRouting)
		authed.POST("/invoice/approvers", s.handleApprovers)
		authed.POST("/invoice/clear", s.handleClearSession)
		authed.GET("/invoice/record", s.handleGetRecord)

		authed.GET("/history", s.handleGetHistory)
		authed.DELETE("/history", s.handleClearHistory)

		authed.GET("/settings", s.handleGetSettings)
		authed.PUT("/settings", s.handleSaveSettings)

		authed.POST("/qa", s.handleQA)
		authed.POST("/qa/document", s.handleDocQA)

		authed.GET("/lookup/airports", s.handleAirports)
		authed.GET("/lookup/approvers/:level", s.handleApproverLevel)
	}

	admin := authed.Group("/admin")
	admin.Use(s.adminRequired())
	{
		admin.GET("/users", s.handleListUsers)
		admin.POST("/users", s.handleCreateUser)
		admin.POST("/users/:id/toggle-active", s.handleToggleActive)
		admin.POST("/users/:id/toggle-admin", s.handleToggleAdmin)
		admin.DELETE("/users/:id", s.handleDeleteUser)
		admin.GET("/activity", s.handleActivity)
	}
}

// engineFor returns the conversation engine bound to the session, creating
// it on first use. Each login token gets its own engine and working record.
func (s *Server) engineFor(session *auth.Session) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if eng, ok := s.engines[session.Token]; ok {
		return eng
	}
	eng := engine.New(session.User.Username, s.extractor, s.poster, s.activity, s.logger)
	s.engines[session.Token] = eng
	return eng
}

// dropEngine discards the engine bound to a token, if any.
func (s *Server) dropEngine(token string) {
	s.mu.Lock()
	delete(s.engines, token)
	s.mu.Unlock()
}

// Start runs the server until the context is canceled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
