// Package wire provides dependency injection for the dispatch application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	cliadapter "github.com/example/dispatch/internal/adapters/cli"
	"github.com/example/dispatch/internal/adapters/clock"
	"github.com/example/dispatch/internal/adapters/events"
	"github.com/example/dispatch/internal/adapters/httpapi"
	"github.com/example/dispatch/internal/adapters/postgres"
	"github.com/example/dispatch/internal/adapters/sqlite"
	"github.com/example/dispatch/internal/app"
	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/ports/secondary"
)

// Services is the assembled application.
type Services struct {
	Config     *config.Config
	Tasks      *app.TaskServiceImpl
	Escalation *app.EscalationServiceImpl
	Dashboards *app.DashboardServiceImpl
	Directory  *app.DirectoryServiceImpl

	closers []func() error
}

// repositories is the storage half of Services, built per driver.
type repositories struct {
	tx        secondary.Transactor
	tasks     secondary.TaskRepository
	audits    secondary.AuditRepository
	orders    secondary.ServiceOrderRepository
	operators secondary.OperatorRepository
}

// Build opens storage and the event bus described by cfg and wires the services.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{Config: cfg}

	policy, rules, err := cfg.LoadPolicy()
	if err != nil {
		return nil, err
	}

	repos, err := s.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := s.openPublisher(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	metrics, err := logging.NewMetrics(nil)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	sysClock := clock.System{}
	s.Tasks = app.NewTaskService(repos.tx, repos.tasks, repos.audits, repos.orders, repos.operators,
		publisher, sysClock, policy, logging.NewLogger("tasks"), metrics)
	s.Escalation = app.NewEscalationService(repos.tx, repos.tasks, repos.audits,
		publisher, sysClock, rules, cfg.SweepWorkers, logging.NewLogger("escalation"), metrics)
	s.Dashboards = app.NewDashboardService(repos.tasks, sysClock, policy)
	s.Directory = app.NewDirectoryService(repos.orders, repos.operators)
	return s, nil
}

func (s *Services) openStorage(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		return postgresRepositories(pool), nil
	default:
		database, err := db.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.closers = append(s.closers, database.Close)
		return sqliteRepositories(database), nil
	}
}

func sqliteRepositories(database *sql.DB) *repositories {
	return &repositories{
		tx:        sqlite.NewStore(database),
		tasks:     sqlite.NewTaskRepository(database),
		audits:    sqlite.NewAuditRepository(database),
		orders:    sqlite.NewServiceOrderRepository(database),
		operators: sqlite.NewOperatorRepository(database),
	}
}

func postgresRepositories(pool *pgxpool.Pool) *repositories {
	return &repositories{
		tx:        postgres.NewStore(pool),
		tasks:     postgres.NewTaskRepository(pool),
		audits:    postgres.NewAuditRepository(pool),
		orders:    postgres.NewServiceOrderRepository(pool),
		operators: postgres.NewOperatorRepository(pool),
	}
}

func (s *Services) openPublisher(ctx context.Context, cfg *config.Config) (secondary.EventPublisher, error) {
	if cfg.RedisAddr == "" {
		return events.NewLogPublisher(logging.NewLogger("events")), nil
	}
	client, err := events.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	return events.NewRedisPublisher(client), nil
}

// Close releases the event bus and storage connections in reverse order.
func (s *Services) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// HTTPHandler returns the REST API over the services.
func (s *Services) HTTPHandler(logger *slog.Logger) *httpapi.Server {
	return httpapi.NewServer(s.Tasks, s.Dashboards, logger)
}

var (
	services *Services
	once     sync.Once
)

// Get returns the process-wide Services, built from the environment on first use.
func Get() *Services {
	once.Do(initServices)
	return services
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	services, err = Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
}

// TaskAdapter returns a new TaskAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func TaskAdapter() *cliadapter.TaskAdapter {
	return TaskAdapterWithOutput(os.Stdout)
}

// TaskAdapterWithOutput returns a new TaskAdapter writing to the given output.
func TaskAdapterWithOutput(out io.Writer) *cliadapter.TaskAdapter {
	return cliadapter.NewTaskAdapter(Get().Tasks, out)
}

// DashboardAdapter returns a new DashboardAdapter writing to stdout.
func DashboardAdapter() *cliadapter.DashboardAdapter {
	return cliadapter.NewDashboardAdapter(Get().Dashboards, os.Stdout)
}

// DirectoryAdapter returns a new DirectoryAdapter writing to stdout.
func DirectoryAdapter() *cliadapter.DirectoryAdapter {
	return cliadapter.NewDirectoryAdapter(Get().Directory, os.Stdout)
}
