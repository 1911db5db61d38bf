// Command catalog-import bulk loads gzipped JSON-lines catalog dumps into
// PostgreSQL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/storage/postgres"
)

func main() {
	var (
		dataDir      string
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps, empty to skip the import")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to store (or CATALOG_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CATALOG_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CATALOG_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CATALOG_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, apiKey, pepper string) error {
	var dumps []*dump
	if dataDir != "" {
		files, err := listDumps(dataDir)
		if err != nil {
			return err
		}
		slog.Info("decoding dumps", slog.Int("files", len(files)))
		if dumps, err = decodeDumps(ctx, files); err != nil {
			return errors.Wrap(err, "decode dumps")
		}
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if len(dumps) > 0 {
		if err := importDumps(ctx, pool, dumps); err != nil {
			return errors.Wrap(err, "import")
		}
	}

	if apiKey != "" {
		if err := postgres.NewAPIKeyRepository(pool).CreateAPIKey(ctx, &auth.APIKeyInfo{
			ID:      uuid.NewString(),
			KeyHash: auth.Hash([]byte(pepper), apiKey),
			Name:    "seed",
			Scopes:  []string{"admin"},
		}); err != nil {
			return errors.Wrap(err, "store api key")
		}
		slog.Info("api key stored")
	}
	return nil
}

func importDumps(ctx context.Context, pool *pgxpool.Pool, dumps []*dump) error {
	products := postgres.NewProductRepository(pool)
	taxa := postgres.NewTaxonomyRepository(pool)

	existing, err := products.ProductNames(ctx)
	if err != nil {
		return errors.Wrap(err, "load product names")
	}
	names := newNameSet(existing, products.ProductNameExists)

	im := newImporter(
		postgres.NewTransactor(pool),
		catalog.NewProductService(products, taxa),
		products,
		taxa,
		names,
	)
	if err := im.run(ctx, dumps); err != nil {
		return err
	}
	slog.Info("import finished",
		slog.Int("taxa", im.stats.taxa),
		slog.Int("products", im.stats.products),
		slog.Int("variants", im.stats.variants),
		slog.Int("duplicates", im.stats.duplicates),
		slog.Int("rejected", im.stats.rejected),
	)
	return nil
}
