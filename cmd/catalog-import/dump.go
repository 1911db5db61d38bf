package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

const maxLineSize = 4 << 20

// Record kinds of a dump line.
const (
	kindCategory = "category"
	kindBrand    = "brand"
	kindProduct  = "product"
)

// record is one line of a catalog dump. Categories and brands use only Name.
// Products reference their category and brand by name.
type record struct {
	Kind        string          `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Variants    []variantRecord `json:"variants"`
}

type variantRecord struct {
	Size      string          `json:"size" validate:"notblank"`
	Color     string          `json:"color" validate:"notblank"`
	Stock     int64           `json:"stock" validate:"gte=0"`
	Price     decimal.Decimal `json:"price"`
	MainImage string          `json:"mainImage" validate:"notblank"`
	SubImages []string        `json:"subImages"`
}

// dump is the decoded content of one file, split so that every taxon can be
// created before any product that references it.
type dump struct {
	path     string
	taxa     []record
	products []record
	// malformed counts lines that could not be decoded.
	malformed int
}

// listDumps returns the *.jsonl.gz files of dir in name order.
func listDumps(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	if err != nil {
		return nil, errors.Wrap(err, "glob dumps")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no *.jsonl.gz files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// decodeDumps decodes every file concurrently. The result keeps the order of
// files.
func decodeDumps(ctx context.Context, files []string) ([]*dump, error) {
	dumps := make([]*dump, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			d, err := decodeDump(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "decode %s", path)
			}
			slog.Info("file decoded",
				slog.String("path", path),
				slog.Int("taxa", len(d.taxa)),
				slog.Int("products", len(d.products)),
				slog.Int("malformed", d.malformed),
			)
			dumps[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dumps, nil
}

func decodeDump(ctx context.Context, path string) (*dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	d := &dump{path: path}
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			slog.Warn("skipping malformed line",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			d.malformed++
			continue
		}

		switch r.Kind {
		case kindCategory, kindBrand:
			d.taxa = append(d.taxa, r)
		case kindProduct:
			d.products = append(d.products, r)
		default:
			slog.Warn("skipping line of unknown kind",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("kind", r.Kind),
			)
			d.malformed++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return d, nil
}

// minorUnits converts a major-unit price such as 19.99 to 1999.
func minorUnits(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, errors.Errorf("price %s is negative", price)
	}
	minor := price.Shift(2)
	if !minor.IsInteger() {
		return 0, errors.Errorf("price %s has more than two decimal places", price)
	}
	if minor.GreaterThan(decimal.NewFromInt(catalog.MaxPrice)) {
		return 0, errors.Errorf("price %s exceeds %s", price, decimal.New(catalog.MaxPrice, -2))
	}
	return minor.IntPart(), nil
}
