// Command coupon-ingest imports coupons from gzip-compressed JSON-lines
// files into the catalog.
//
//	coupon-ingest --database-url postgres://... spring.jsonl.gz partners.jsonl.gz
//
// Files are read concurrently and merged in argument order. When a code
// appears more than once the later record wins. --deactivate retires codes
// after the import.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/ingest"
	"github.com/xenking/foodkart-checkout/internal/storage/postgres"
)

const progressEvery = 1000

func main() {
	var (
		databaseURL    string
		positionOffset int
		dryRun         bool
		deactivate     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&positionOffset, "position-offset", 0, "catalog position of the first imported coupon")
	flag.BoolVar(&dryRun, "dry-run", false, "read and validate files without writing to the database")
	flag.StringVar(&deactivate, "deactivate", "", "comma-separated coupon codes to retire after the import")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	files := flag.Args()
	retired := splitCodes(deactivate)
	if len(files) == 0 && len(retired) == 0 {
		lg.Fatal("At least one input file or --deactivate code is required")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, files, retired, databaseURL, positionOffset, dryRun); err != nil {
		lg.Error("Coupon ingest failed", zap.Error(err))
		cancel()
		_ = lg.Sync()
		os.Exit(1)
	}

	lg.Info("Coupon ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, files, retired []string, databaseURL string, offset int, dryRun bool) error {
	lg.Info("Reading files", zap.Strings("files", files))

	results, err := ingest.ReadFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read files")
	}

	invalid := 0
	for _, res := range results {
		for _, lineErr := range res.Invalid {
			lg.Warn("Skipping invalid line",
				zap.String("file", lineErr.File),
				zap.Int("line", lineErr.Line),
				zap.Error(lineErr.Err),
			)
		}
		invalid += len(res.Invalid)
		lg.Info("File read",
			zap.String("file", res.Path),
			zap.Int("coupons", len(res.Records)),
			zap.Int("invalid", len(res.Invalid)),
		)
	}

	catalog, dups := ingest.Merge(results)
	for _, d := range dups {
		lg.Warn("Duplicate coupon code, later record wins",
			zap.String("code", d.Code),
			zap.String("replaced", d.Replaced.File),
			zap.Int("replaced_line", d.Replaced.Line),
			zap.String("kept", d.Kept.File),
			zap.Int("kept_line", d.Kept.Line),
		)
	}
	lg.Info("Merged catalog",
		zap.Int("coupons", len(catalog)),
		zap.Int("duplicates", len(dups)),
		zap.Int("invalid", invalid),
	)

	if dryRun || (len(catalog) == 0 && len(retired) == 0) {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCouponRepository(pool)
	if err := writeCoupons(ctx, lg, repo, catalog, offset); err != nil {
		return err
	}
	for _, code := range retired {
		if err := repo.Deactivate(ctx, code); err != nil {
			if errors.Is(err, coupon.ErrInvalidCoupon) {
				lg.Warn("Coupon to deactivate not found", zap.String("code", code))
				continue
			}
			return errors.Wrapf(err, "deactivate coupon %s", code)
		}
		lg.Info("Deactivated coupon", zap.String("code", code))
	}
	return nil
}

func splitCodes(list string) []string {
	var codes []string
	for _, code := range strings.Split(list, ",") {
		if code = coupon.NormalizeCode(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// writeCoupons upserts the catalog in order.
func writeCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, catalog []coupon.Coupon, offset int) error {
	for i, c := range catalog {
		if err := repo.Upsert(ctx, c, offset+i); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		if (i+1)%progressEvery == 0 || i+1 == len(catalog) {
			lg.Info("Write progress", zap.Int("written", i+1), zap.Int("total", len(catalog)))
		}
	}
	return nil
}
