// Package http exposes the travel expense services over a JSON API.
// It translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-expense/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		MaxUploadSize: 10 << 20,
	}
}

// Services are the application services behind the API
type Services struct {
	Catalog    service.CatalogService
	Expense    service.ExpenseService
	Sheet      service.SheetService
	Approval   service.ApprovalService
	Accounting service.AccountingService
	Settlement service.SettlementService
	Report     service.LiquidationReportService
}

// HealthFunc reports whether the service is healthy, with per-component details
type HealthFunc func(ctx context.Context) (healthy bool, components interface{})

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	tokens     *TokenIssuer
	users      UserLoader
	health     HealthFunc
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	services Services,
	tokens *TokenIssuer,
	health HealthFunc,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadSize > 0 {
		router.MaxMultipartMemory = config.MaxUploadSize
	}

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		tokens:   tokens,
		users:    services.Catalog,
		health:   health,
		logger:   logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.health, s.config.MaxUploadSize, s.logger)

	// Health check
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api", s.authMiddleware())

	expenses := api.Group("/expenses")
	{
		expenses.POST("", h.CreateExpense)
		expenses.GET("", h.ListExpenses)
		expenses.POST("/report", h.ReportExpenses)
		expenses.GET("/:id", h.GetExpense)
		expenses.PATCH("/:id", h.UpdateExpense)
		expenses.DELETE("/:id", h.DeleteExpense)
		expenses.POST("/:id/proof", h.UploadProof)
		expenses.GET("/:id/proof", h.DownloadProof)
		expenses.POST("/:id/extract", h.ExtractReceipt)
	}

	sheets := api.Group("/sheets")
	{
		sheets.POST("", h.CreateSheet)
		sheets.GET("", h.ListSheets)
		sheets.POST("/submit", h.SubmitSheets)
		sheets.POST("/approve", h.ApproveSheets)
		sheets.POST("/refuse", h.RefuseSheets)
		sheets.POST("/reset", h.ResetSheets)
		sheets.POST("/create-moves", h.CreateMoves)
		sheets.POST("/post", h.PostSheets)
		sheets.POST("/register-payment", h.RegisterPayment)
		sheets.POST("/settle", h.SettleAdvances)
		sheets.GET("/:id", h.GetSheet)
		sheets.PATCH("/:id", h.UpdateSheet)
		sheets.DELETE("/:id", h.DeleteSheet)
		sheets.POST("/:id/lines", h.AddLines)
		sheets.DELETE("/:id/lines", h.RemoveLines)
		sheets.GET("/:id/messages", h.ListMessages)
		sheets.GET("/:id/activities", h.ListActivities)
		sheets.GET("/:id/moves", h.ListMoves)
		sheets.POST("/:id/liquidation-report", h.CreateLiquidationReport)
		sheets.GET("/:id/liquidation-report", h.GetLiquidationReport)
		sheets.GET("/:id/liquidation-report/xlsx", h.ExportLiquidationReport)
	}

	catalog := api.Group("/catalog")
	{
		catalog.POST("/companies", h.CreateCompany)
		catalog.GET("/companies", h.ListCompanies)
		catalog.PUT("/companies/:id/settings", h.UpdateCompanySettings)
		catalog.POST("/journals", h.CreateJournal)
		catalog.GET("/journals", h.ListJournals)
		catalog.POST("/accounts", h.CreateAccount)
		catalog.GET("/accounts", h.ListAccounts)
		catalog.POST("/taxes", h.CreateTax)
		catalog.GET("/taxes", h.ListTaxes)
		catalog.POST("/categories", h.CreateCategory)
		catalog.GET("/categories", h.ListCategories)
		catalog.POST("/partners", h.CreatePartner)
		catalog.GET("/partners", h.ListPartners)
		catalog.POST("/employees", h.CreateEmployee)
		catalog.GET("/employees", h.ListEmployees)
		catalog.POST("/users", h.CreateUser)
		catalog.GET("/users", h.ListUsers)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
