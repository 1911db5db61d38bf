package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
	"github.com/xenking/storefront-catalog/internal/handler"
	"github.com/xenking/storefront-catalog/internal/media"
	"github.com/xenking/storefront-catalog/internal/storage/memory"
	"github.com/xenking/storefront-catalog/internal/storage/minio"
	"github.com/xenking/storefront-catalog/internal/storage/postgres"
	"github.com/xenking/storefront-catalog/pkg/health"
	"github.com/xenking/storefront-catalog/pkg/httpmiddleware"
)

// backend is the set of repositories behind the domain services.
type backend struct {
	reader   catalog.Reader
	products interface {
		catalog.ProductRepository
		variant.Store
	}
	taxa  taxonomy.Repository
	keys  auth.Repository
	tx    variant.Transactor
	close func()
}

func openPostgres(ctx context.Context, cfg *Config, hc *health.Health) (*backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	tx := postgres.NewTransactor(pool)
	return &backend{
		reader:   postgres.NewCatalogRepository(pool, tx),
		products: postgres.NewProductRepository(pool),
		taxa:     postgres.NewTaxonomyRepository(pool),
		keys:     postgres.NewAPIKeyRepository(pool),
		tx:       tx,
		close:    pool.Close,
	}, nil
}

func openMemory(ctx context.Context, cfg *Config) (*backend, error) {
	store := memory.New()
	if cfg.AdminAPIKey != "" {
		if err := store.CreateAPIKey(ctx, &auth.APIKeyInfo{
			ID:      uuid.NewString(),
			KeyHash: auth.Hash([]byte(cfg.APIKeyPepper), cfg.AdminAPIKey),
			Name:    "bootstrap",
			Scopes:  []string{"admin"},
		}); err != nil {
			return nil, errors.Wrap(err, "bootstrap api key")
		}
	}
	return &backend{
		reader:   store,
		products: store,
		taxa:     store,
		keys:     store,
		tx:       memory.NewTransactor(),
		close:    func() {},
	}, nil
}

// openObjects returns the image object store. Without an endpoint images
// live in memory and are lost on restart.
func openObjects(ctx context.Context, lg *zap.Logger, cfg ImagesConfig, hc *health.Health) (media.ObjectStore, error) {
	if cfg.Endpoint == "" {
		lg.Warn("Images endpoint not configured, keeping images in memory")
		return memory.NewObjects(), nil
	}
	store, err := minio.New(minio.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, errors.Wrap(err, "ensure bucket")
	}
	hc.AddReadinessCheck("images", 5*time.Second, health.DependencyCheck(store))
	return store, nil
}

// addLivenessChecks registers the process-level checks served on /livez.
func addLivenessChecks(hc *health.Health, maxGoroutines int, maxGCPause time.Duration) {
	hc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(maxGoroutines))
	hc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(maxGCPause))
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	healthSvc := health.New()
	addLivenessChecks(healthSvc, 10000, 5*time.Second)

	var (
		b   *backend
		err error
	)
	switch cfg.Storage {
	case StorageMemory:
		b, err = openMemory(ctx, cfg)
	default:
		b, err = openPostgres(ctx, cfg, healthSvc)
	}
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer b.close()

	objects, err := openObjects(ctx, lg, cfg.Images, healthSvc)
	if err != nil {
		return errors.Wrap(err, "open image store")
	}

	// Domain services.
	engine, err := catalog.NewEngine(b.reader, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create query engine")
	}
	uploader := media.NewUploader(objects, media.Config{
		Timeout:     cfg.Images.UploadTimeout,
		Concurrency: cfg.Images.Concurrency,
	})
	products := catalog.NewProductService(b.products, b.taxa)
	variants := variant.NewManager(b.products, b.tx, uploader)
	taxa := taxonomy.NewService(b.taxa)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			ImageBaseURL: cfg.Images.PublicBaseURL,
			Storefront: catalog.PageDefaults{
				PageSize:    cfg.Listing.StorefrontPageSize,
				MaxPageSize: cfg.Listing.MaxPageSize,
			},
			Admin: catalog.PageDefaults{
				PageSize:    cfg.Listing.AdminPageSize,
				MaxPageSize: cfg.Listing.MaxPageSize,
			},
			MaxSecondaryImages: cfg.Images.MaxSecondary,
			MaxFileSize:        cfg.Images.MaxFileSize,
		},
		engine, products, variants, taxa,
	)
	authn := auth.NewAuthenticator(b.keys, []byte(cfg.APIKeyPepper))

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", h.Router(authn))

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	routeFinder := httpmiddleware.MakeRouteFinder(router)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       cfg.Images.UploadTimeout + 5*time.Second,
		WriteTimeout:      cfg.Images.UploadTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("catalog-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
