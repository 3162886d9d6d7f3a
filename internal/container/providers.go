package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/dispatcher"
	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/application/service"
	infraLark "github.com/garyjia/travel-expense/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-expense/internal/infrastructure/external/openai"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-expense/internal/infrastructure/report"
	"github.com/garyjia/travel-expense/internal/infrastructure/storage"
	"github.com/garyjia/travel-expense/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the optional external integrations.
// A nil field means the integration is not configured.
type ExternalBundle struct {
	Notifier  port.Notifier
	Extractor port.ReceiptExtractor
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Inspector   port.DocumentInspector
	Renderer    port.ReportRenderer
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideStores creates all repositories over a database connection.
func ProvideStores(db *sqlite.DB, logger *zap.Logger) (service.Stores, error) {
	if db == nil {
		return service.Stores{}, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return service.Stores{}, fmt.Errorf("logger is required")
	}

	return service.Stores{
		Expenses:   repository.NewExpenseRepository(db.DB, logger),
		Sheets:     repository.NewSheetRepository(db.DB, logger),
		Moves:      repository.NewMoveRepository(db.DB, logger),
		Payments:   repository.NewPaymentRepository(db.DB, logger),
		Catalog:    repository.NewCatalogRepository(db.DB, logger),
		Messages:   repository.NewMessageRepository(db.DB, logger),
		Activities: repository.NewActivityRepository(db.DB, logger),
		Reports:    repository.NewLiquidationReportRepository(db.DB, logger),
		Tx:         db,
	}, nil
}

// ProvideExternal creates the Lark notifier and the OpenAI receipt extractor when configured.
func ProvideExternal(larkCfg *LarkConfig, openaiCfg *OpenAIConfig, logger *zap.Logger) (*ExternalBundle, error) {
	if larkCfg == nil || openaiCfg == nil {
		return nil, fmt.Errorf("external config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{}

	if larkCfg.AppID != "" {
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:     larkCfg.AppID,
			AppSecret: larkCfg.AppSecret,
			BaseURL:   larkCfg.BaseURL,
		})
		bundle.Notifier = infraLark.NewMessenger(client, logger)
	} else {
		logger.Info("Lark is not configured, notifications disabled")
	}

	if openaiCfg.APIKey != "" {
		prompts, err := openai.LoadPrompts(openaiCfg.PromptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		bundle.Extractor = openai.NewReceiptExtractor(openai.Config{
			APIKey:   openaiCfg.APIKey,
			BaseURL:  openaiCfg.BaseURL,
			Model:    openaiCfg.Model,
			Currency: openaiCfg.Currency,
			Timeout:  openaiCfg.Timeout,
		}, prompts, logger)
	} else {
		logger.Info("OpenAI is not configured, receipt extraction disabled")
	}

	return bundle, nil
}

// ProvideStorage creates proof storage, the document inspector and the report renderer.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.ProofDir, logger),
		Inspector:   storage.NewDocumentInspector(),
		Renderer:    report.NewLiquidationRenderer(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Stores     service.Stores
	Storage    *StorageBundle
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Clock      service.Clock
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the notifier.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Stores.Tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil || deps.External == nil {
		return nil, fmt.Errorf("storage and external bundles are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	// Create logger adapter for services
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	bundle := &ServiceBundle{
		Catalog: service.NewCatalogService(deps.Stores.Catalog, serviceLogger),
		Expense: service.NewExpenseService(
			deps.Stores,
			deps.Storage.FileStorage,
			deps.Storage.Inspector,
			deps.External.Extractor,
			deps.Dispatcher,
			clock,
			serviceLogger,
		),
		Sheet:      service.NewSheetService(deps.Stores, clock, serviceLogger),
		Approval:   service.NewApprovalService(deps.Stores, deps.Dispatcher, clock, serviceLogger),
		Accounting: service.NewAccountingService(deps.Stores, deps.Dispatcher, clock, serviceLogger),
		Settlement: service.NewSettlementService(deps.Stores, deps.Dispatcher, clock, serviceLogger),
		Report:     service.NewLiquidationReportService(deps.Stores, deps.Storage.Renderer, clock, serviceLogger),
	}

	if deps.External.Notifier != nil {
		bundle.Notification = service.NewNotificationService(deps.Stores.Catalog, deps.External.Notifier, serviceLogger)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}
