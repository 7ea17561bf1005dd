// Package server wires eventpass together: configuration, logging, tracing,
// storage, the login limiter, picture storage, services, and the HTTP and
// gRPC servers, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/httpapi"
	"github.com/dmitrijs2005/eventpass/internal/server/ratelimit"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
	"github.com/dmitrijs2005/eventpass/internal/server/storage"
	"github.com/dmitrijs2005/eventpass/internal/server/telemetry"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/eventpass/internal/server/grpc"
)

const redisPingTimeout = 2 * time.Second

type App struct {
	config        *config.Config
	logger        logging.Logger
	repos         repomanager.RepositoryManager
	redis         *redis.Client
	authService   *services.AuthService
	eventService  *services.EventService
	tokens        *auth.TokenIssuer
	shutdownTrace func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	shutdownTrace, err := telemetry.Setup(ctx, c.OTelEndpoint, c.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN, c.DBConnectAttempts, c.DBConnectDelay, logger)
	if err != nil {
		_ = shutdownTrace(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		_ = shutdownTrace(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, repos: repos, shutdownTrace: shutdownTrace}

	var limiter ratelimit.Limiter = ratelimit.Nop{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, login limiting degraded", "error", err)
		}
		cancel()
		limiter = ratelimit.NewRedisLimiter(app.redis, "eventpass:login:", c.LoginAttemptLimit, c.LoginAttemptWindow)
	}

	var pictures services.PictureStore
	if c.S3Bucket != "" {
		p, err := storage.NewPresigner(ctx, c)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("storage init error: %w", err)
		}
		pictures = p
	}

	app.tokens = auth.NewTokenIssuer(c.SecretKey)
	hasher := auth.NewPasswordHasher(c.BcryptCost)
	app.authService = services.NewAuthService(repos, app.tokens, hasher, limiter, pictures, c, logger)
	app.eventService = services.NewEventService(repos, pictures, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := httpapi.NewServer(app.config.HTTPAddr, app.config.RequestTimeout, app.logger,
		app.authService, app.eventService, app.tokens)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, a termination signal arrives, or one of
// the servers fails. Resources are released before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		collect(app.startHTTPServer(ctx, cancelFunc))
	}()
	go func() {
		defer wg.Done()
		collect(app.startGRPCServer(ctx, cancelFunc))
	}()

	wg.Wait()

	app.Close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return errors.Join(errs...)
}

// Close releases the store, the redis client, and flushes traces.
func (app *App) Close(ctx context.Context) {
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "closing redis", "error", err)
		}
	}
	if err := app.shutdownTrace(ctx); err != nil {
		app.logger.Error(ctx, "flushing traces", "error", err)
	}
}
