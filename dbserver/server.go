package dbserver

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/observability"
)

// Store is the database surface the gateway exposes. The database package's
// Conn implements it.
type Store interface {
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Healthy(ctx context.Context) bool
}

// Server is the REST database gateway.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	store      Store
	log        *logger.Logger
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type queryRequest struct {
	SQL  string `json:"sql" binding:"required"`
	Args []any  `json:"args"`
}

// New creates a gateway around the given store.
func New(cfg Config, store Store, log *logger.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.WithComponent("dbserver")
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		config: cfg,
		store:  store,
		log:    log,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.Use(tracingMiddleware())
	s.engine.Use(authMiddleware(s.config.JWTSecret, []string{"/health", "/auth/token"}))

	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/auth/token", s.handleToken)
	s.engine.POST("/query", s.handleQuery)
	s.engine.POST("/execute", s.handleExecute)
}

// Engine returns the Gin engine, used by tests to drive requests directly.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("dbserver failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("database gateway started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("dbserver shutdown error: %w", err)
	}
	s.log.Info("database gateway shut down")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "up"
	code := http.StatusOK
	if !s.store.Healthy(c.Request.Context()) {
		status = "down"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

func (s *Server) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	password, ok := s.config.Users[req.Username]
	if !ok || password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := issueToken(s.config.JWTSecret, req.Username, s.config.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanDBQuery)
	rows, err := s.store.Query(ctx, req.SQL, req.Args...)
	if err != nil {
		span.RecordError(err)
		span.End()
		s.log.Error("query failed", logger.ErrorFields("query", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	span.End()
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanDBQuery)
	affected, err := s.store.Exec(ctx, req.SQL, req.Args...)
	if err != nil {
		span.RecordError(err)
		span.End()
		s.log.Error("execute failed", logger.ErrorFields("execute", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	span.End()
	c.JSON(http.StatusOK, gin.H{"rows_affected": affected})
}
