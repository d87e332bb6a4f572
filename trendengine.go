// Package trendengine is a trending-topics news engine built with Go, Echo,
// and templ. It stores trends in SQLite or Postgres, serves them through a
// JSON API and server-rendered pages, and notifies search engines when
// articles change.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// trendengine handles the handler logic, middleware, and storage.
package trendengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/eringen/trendengine/blob"
	"github.com/eringen/trendengine/indexing"
	"github.com/eringen/trendengine/media"
)

const shutdownTimeout = 15 * time.Second

// App is the central trendengine application. It wires together the store,
// cache, writer, handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *TrendCache
	Writer *Writer
	Views  ViewFuncs
	Log    *zap.Logger

	blobs        blob.Store
	notifier     indexing.Notifier
	dispatcher   *indexing.Dispatcher
	natsConn     *nats.Conn
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	initialized  bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views.withDefaults(),
		Log:    zap.NewNop(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithStore uses an already opened store instead of opening Config.Database.
func WithStore(s *Store) Option {
	return func(a *App) { a.Store = s }
}

// WithBlobStore overrides the configured upload storage.
func WithBlobStore(s blob.Store) Option {
	return func(a *App) { a.blobs = s }
}

// WithNotifier overrides the configured search engine notifiers.
func WithNotifier(n indexing.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithLogger sets the application logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Log = l
		}
	}
}

// Init opens the store and upload storage, builds the notifiers, and
// registers middleware and routes. Start and Run call it when needed.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("trendengine: invalid config: %w", err)
	}

	if a.Store == nil {
		store, err := OpenStore(Dialect(a.Config.Database.Driver), a.Config.Database.DSN)
		if err != nil {
			return fmt.Errorf("trendengine: init store: %w", err)
		}
		a.Store = store
	}

	if a.blobs == nil {
		blobs, err := a.openBlobStore(ctx)
		if err != nil {
			return fmt.Errorf("trendengine: init blob store: %w", err)
		}
		a.blobs = blobs
	}

	if a.notifier == nil {
		n, err := a.buildNotifier(ctx)
		if err != nil {
			return fmt.Errorf("trendengine: init indexing: %w", err)
		}
		a.notifier = n
	}
	a.dispatcher = indexing.NewDispatcher(a.notifier, a.Config.Indexing.QueueSize, a.Config.Indexing.Timeout, a.Log)

	a.Cache = NewTrendCache(a.Store, a.Config.CacheTTL)
	resolver := media.NewResolver(a.blobs, a.Config.Blob.Timeout, a.Log)
	a.Writer = NewWriter(a.Store, resolver, a.dispatcher, a.Cache, a.Config.URL, a.Log)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	a.Log.Info("trendengine initialized",
		zap.String("database", a.Config.Database.Driver),
		zap.String("blob", a.Config.Blob.Driver),
		zap.String("url", a.Config.URL))
	return nil
}

func (a *App) openBlobStore(ctx context.Context) (blob.Store, error) {
	if a.Config.Blob.Driver == "s3" {
		s3 := a.Config.Blob.S3
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Prefix:          s3.Prefix,
			PublicBaseURL:   s3.PublicBaseURL,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
		})
	}
	return blob.NewLocal(a.Config.Blob.Dir, a.Config.Blob.BaseURL)
}

// buildNotifier combines every configured notifier. With none configured
// changes are only logged.
func (a *App) buildNotifier(ctx context.Context) (indexing.Notifier, error) {
	cfg := a.Config.Indexing
	var all indexing.Multi

	if cfg.GoogleCredentialsFile != "" {
		creds, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		g, err := indexing.NewGoogle(ctx, creds)
		if err != nil {
			return nil, err
		}
		all = append(all, g)
	}
	if cfg.IndexNowKey != "" {
		keyLocation := AbsoluteURL(a.Config.URL, PathEscape(cfg.IndexNowKey)+".txt")
		all = append(all, indexing.NewIndexNow(cfg.IndexNowEndpoint, cfg.IndexNowKey, keyLocation))
	}
	if cfg.NATSURL != "" {
		conn, err := indexing.ConnectNATS(cfg.NATSURL, a.Log)
		if err != nil {
			return nil, err
		}
		a.natsConn = conn
		all = append(all, indexing.NewNATS(conn, cfg.NATSSubject))
	}

	if len(all) == 0 {
		a.Log.Info("no indexing notifiers configured")
		return indexing.Noop{}, nil
	}
	return all, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)
	if a.Config.Blob.Driver == "local" {
		e.Static(a.Config.Blob.BaseURL, a.Config.Blob.Dir)
	}
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	if key := a.Config.Indexing.IndexNowKey; key != "" {
		e.GET("/"+PathEscape(key)+".txt", func(c echo.Context) error {
			return c.String(http.StatusOK, key)
		})
	}

	// Public pages
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/trends/:slug/", a.handleTrendPage)

	// JSON API
	api := e.Group("/api")
	api.GET("/trends", a.handleListTrends)
	api.GET("/trends/:slug", a.handleGetTrend)
	api.GET("/categories", a.handleCategories)
	api.POST("/trends", a.handleCreateTrend, a.requireAdmin)
	api.PUT("/trends/:slug", a.handleUpdateTrend, a.requireAdmin)
	api.DELETE("/trends/:slug", a.handleDeleteTrend, a.requireAdmin)

	api.POST("/auth/login", a.handleLogin)
	api.POST("/auth/logout", a.handleLogout)
	api.GET("/auth/session", a.handleSession)
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Log.Info("listening", zap.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- a.Start() }()

	select {
	case err := <-errc:
		a.Close(context.Background())
		return err
	case <-ctx.Done():
	}
	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Close(shutdownCtx)
}

// Close stops the server, drains pending search engine notifications, and
// releases the store and broker connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Echo.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain indexing queue: %w", err))
		}
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
