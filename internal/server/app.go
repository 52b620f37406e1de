// Package server wires the APIFarm components together and runs the HTTP
// service until the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/config"
	"github.com/zhusq20/APIFarm/internal/server/dispatch"
	"github.com/zhusq20/APIFarm/internal/server/httpapi"
	"github.com/zhusq20/APIFarm/internal/server/pool"
	"github.com/zhusq20/APIFarm/internal/server/sessions"
	"github.com/zhusq20/APIFarm/internal/server/store"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    store.Store
	sessions *sessions.Manager
	pool     *pool.Pool
	router   *gin.Engine
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	st, err := store.Open(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	tokens, err := newTokenStore(c)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("session store init error: %w", err)
	}

	sm := sessions.NewManager(st, tokens, c.SecretKey, c.TokenTTL, logger)
	sm.Load(ctx)

	p := pool.New(st, upstream.HTTPFactory(&http.Client{}), c.DefaultUpstreamURL, logger)
	p.Load(ctx)

	d := dispatch.New(c.UpstreamTimeout, c.MaxBatchConcurrency, logger)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandler(p, sm, d, logger))

	return &App{config: c, logger: logger, store: st, sessions: sm, pool: p, router: router}, nil
}

func newTokenStore(c *config.Config) (sessions.TokenStore, error) {
	switch c.SessionBackend {
	case config.SessionMemory, "":
		return sessions.NewMemoryTokenStore(), nil
	case config.SessionRedis:
		client, err := sessions.NewRedisClient(c.RedisURL)
		if err != nil {
			return nil, err
		}
		return sessions.NewRedisTokenStore(client), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, ln net.Listener, cancelFunc context.CancelFunc) {
	srv := &http.Server{Handler: app.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err)
		}
		cancelFunc()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http server shutdown failed", "error", err)
		}
	}
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then shuts down and releases the store and token backends.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	ln, err := net.Listen("tcp", app.config.EndpointAddr)
	if err != nil {
		app.close(ctx)
		return fmt.Errorf("listen %s: %w", app.config.EndpointAddr, err)
	}

	app.logger.Info(ctx, "Starting app...", "addr", ln.Addr().String(), "keys", app.pool.Size())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, ln, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "app stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if err := app.sessions.Close(); err != nil {
		app.logger.Warn(ctx, "closing session store", "error", err)
	}
	if err := app.store.Close(); err != nil {
		app.logger.Warn(ctx, "closing credential store", "error", err)
	}
}
