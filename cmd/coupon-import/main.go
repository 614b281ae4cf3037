package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/repository"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory scanned for *.jsonl.gz files when none are given as arguments")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent coupon writers")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of distinct codes, sizes the duplicate filter")
	flag.BoolVar(&dryRun, "dry-run", false, "validate input without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			slog.Error("list data dir", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no input files: pass .jsonl.gz paths or populate --data-dir")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := importConfig{
		Files:    files,
		Workers:  workers,
		Expected: expected,
		DryRun:   dryRun,
	}
	if err := run(ctx, databaseURL, cfg); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, cfg importConfig) error {
	for _, f := range cfg.Files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	var admin *coupon.Admin
	if !cfg.DryRun {
		slog.Info("connecting to database")

		pool, err := repository.NewPool(ctx, databaseURL, int32(max(cfg.Workers, 1)))
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		admin = coupon.NewAdmin(repository.NewCouponRepository(pool))
	}

	st, err := importCoupons(ctx, admin, cfg)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Bool("dry_run", cfg.DryRun),
		slog.Int64("lines", st.lines.Load()),
		slog.Int64("created", st.created.Load()),
		slog.Int64("existing", st.existing.Load()),
		slog.Int64("duplicate", st.duplicate.Load()),
		slog.Int64("invalid", st.invalid.Load()),
	)
	return nil
}
