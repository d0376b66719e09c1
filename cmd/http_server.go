package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/menu-authz/api"
	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/access"
	"github.com/frahmantamala/menu-authz/internal/auth"
	"github.com/frahmantamala/menu-authz/internal/core/events"
	"github.com/frahmantamala/menu-authz/internal/grant"
	grantPostgres "github.com/frahmantamala/menu-authz/internal/grant/postgres"
	"github.com/frahmantamala/menu-authz/internal/menu"
	menuPostgres "github.com/frahmantamala/menu-authz/internal/menu/postgres"
	"github.com/frahmantamala/menu-authz/internal/platform/database"
	"github.com/frahmantamala/menu-authz/internal/transport"
	"github.com/frahmantamala/menu-authz/internal/transport/middleware"
	"github.com/frahmantamala/menu-authz/internal/transport/rest"
	"github.com/frahmantamala/menu-authz/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Logger   *slog.Logger
	EventBus *events.EventBus
	Menus    *menu.Service
	Grants   *grant.Service
	Resolver *access.Resolver
	Tokens   *auth.TokenManager
}

func (d *Dependencies) Close() {
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router, err := setupRoutes(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		deps.Close()
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "driver", deps.Config.Database.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	doc, err := middleware.LoadOpenAPI(context.Background(), api.Spec)
	if err != nil {
		return nil, err
	}

	base := transport.NewBaseHandler(deps.Logger)
	router := chi.NewRouter()
	err = rest.RegisterAllRoutes(router, rest.RouterConfig{
		Server:  deps.Config.Server,
		Access:  deps.Config.Access,
		Logger:  deps.Logger,
		OpenAPI: doc,
		Spec:    api.Spec,
		Auth:    auth.NewMiddleware(base, deps.Tokens),
		Checker: deps.Resolver,
		Health:  rest.NewHealthHandler(deps.DB, deps.Config.Database.Driver),
		Menu:    menu.NewHandler(base, deps.Menus),
		Grant:   grant.NewHandler(base, deps.Grants),
		Me:      access.NewHandler(base, deps.Resolver),
	})
	if err != nil {
		return nil, err
	}
	return router, nil
}

// initializeDependencies wires the services. CLI commands pass synchronous so
// the audit subscriber has logged every event before the process exits.
func initializeDependencies(synchronous bool) (*Dependencies, error) {
	config, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.L()

	dbConn, gormDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := events.NewEventBus(lg)
	events.RegisterAuditLogger(bus, lg)
	var publisher events.Publisher = bus
	if synchronous {
		publisher = bus.Synchronous()
	}

	menus := menu.NewService(menuPostgres.NewMenuRepository(gormDB), publisher, lg)
	grants := grant.NewService(grantPostgres.NewGrantRepository(gormDB), publisher, config.Access, lg)

	return &Dependencies{
		Config:   config,
		DB:       dbConn,
		Gorm:     gormDB,
		Logger:   lg,
		EventBus: bus,
		Menus:    menus,
		Grants:   grants,
		Resolver: access.NewResolver(menus, grants, lg),
		Tokens:   auth.NewTokenManager(config.Security),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	dbConn, gormDB, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, dbConn); err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}

	// sqlite has no goose migrations; an in-memory database starts empty on every run
	if cfg.Driver == database.DriverSQLite {
		if err := database.AutoMigrate(gormDB); err != nil {
			_ = dbConn.Close()
			return nil, nil, err
		}
	}

	return dbConn, gormDB, nil
}
