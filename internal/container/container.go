package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/dispatcher"
	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/application/service"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-expense/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  service.Clock

	// Infrastructure - Data
	conn   *database.DB
	db     *sqlite.DB
	stores service.Stores

	// Infrastructure - External and storage
	external *ExternalBundle
	storage  *StorageBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
// Notification is nil when no notifier is configured.
type ServiceBundle struct {
	Catalog      service.CatalogService
	Expense      service.ExpenseService
	Sheet        service.SheetService
	Approval     service.ApprovalService
	Accounting   service.AccountingService
	Settlement   service.SettlementService
	Report       service.LiquidationReportService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures the container
type Option func(*Container)

// WithClock overrides the clock handed to services
func WithClock(clock service.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. External clients (Lark, OpenAI)
// 3. Storage
// 4. Event dispatcher
// 5. Application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	external, err := ProvideExternal(&c.config.Lark, &c.config.OpenAI, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.external = external
	c.logger.Info("External clients initialized",
		zap.Bool("notifications", external.Notifier != nil),
		zap.Bool("receipt_extraction", external.Extractor != nil))

	// Step 3: Initialize storage
	storageBundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = storageBundle
	c.logger.Info("Storage initialized")

	// Step 4: Initialize dispatcher
	if c.dispatcher, err = ProvideDispatcher(c.logger); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	// Step 5: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Stores:     c.stores,
		Storage:    c.storage,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Wait for in-flight notifications before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready reports whether Start completed
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of each component
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.conn != nil {
		if err := c.conn.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Optional integrations never make the service unhealthy
	status.Components["notifications"] = optional(c.external != nil && c.external.Notifier != nil)
	status.Components["receipt_extraction"] = optional(c.external != nil && c.external.Extractor != nil)

	return status
}

func optional(enabled bool) ComponentHealth {
	if enabled {
		return ComponentHealth{Healthy: true}
	}
	return ComponentHealth{Healthy: true, Message: "disabled"}
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	stores, err := ProvideStores(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.stores = stores
	return nil
}

func (c *Container) closeDatabase() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Stores returns the repositories.
func (c *Container) Stores() service.Stores {
	return c.stores
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// NewServiceLogger adapts a zap logger to the interface taken by services and HTTP handlers
func NewServiceLogger(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
