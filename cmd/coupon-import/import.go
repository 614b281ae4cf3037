package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/coupon"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 100_000
)

type importConfig struct {
	Files    []string
	Workers  int
	Expected uint
	// DryRun validates every definition without writing.
	DryRun bool
}

type stats struct {
	lines     atomic.Int64
	created   atomic.Int64
	existing  atomic.Int64
	duplicate atomic.Int64
	invalid   atomic.Int64
}

// entry is a parsed coupon definition and where it came from.
type entry struct {
	loc    string
	code   string
	terms  coupon.Terms
	active bool
}

// importCoupons parses every file concurrently, drops codes already seen in
// any file and creates the rest through admin. A nil admin is only allowed
// in dry-run mode.
func importCoupons(ctx context.Context, admin *coupon.Admin, cfg importConfig) (*stats, error) {
	if admin == nil && !cfg.DryRun {
		return nil, errors.New("admin is required unless dry-run")
	}
	workers := max(cfg.Workers, 1)
	st := &stats{}

	parsed := make(chan entry, workers*64)
	unique := make(chan entry, workers*64)

	g, ctx := errgroup.WithContext(ctx)

	parsers, pctx := errgroup.WithContext(ctx)
	for _, f := range cfg.Files {
		parsers.Go(func() error {
			return parseFile(pctx, f, st, parsed)
		})
	}
	g.Go(func() error {
		defer close(parsed)
		return parsers.Wait()
	})

	g.Go(func() error {
		defer close(unique)
		return dedupe(ctx, max(cfg.Expected, 1), parsed, unique, st)
	})

	for range workers {
		g.Go(func() error {
			for e := range unique {
				if err := write(ctx, admin, e, st); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

// parseFile streams a gzip-compressed JSONL file of coupon definitions.
// Malformed lines are counted and skipped.
func parseFile(ctx context.Context, path string, st *stats, out chan<- entry) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count int
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for num := 1; scanner.Scan(); num++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		st.lines.Add(1)
		count++
		if count%progressEvery == 0 {
			slog.Info("parse progress", slog.String("file", path), slog.Int("lines", count))
		}

		loc := fmt.Sprintf("%s:%d", path, num)
		e, err := parseLine(loc, line)
		if err != nil {
			st.invalid.Add(1)
			slog.Warn("invalid coupon definition", slog.String("at", loc), slog.String("error", err.Error()))
			continue
		}

		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("parse complete", slog.String("file", path), slog.Int("lines", count))
	return nil
}

func parseLine(loc string, line []byte) (entry, error) {
	var req api.CreateCouponRequest
	if err := api.Unmarshal(line, &req); err != nil {
		return entry{}, errors.Wrap(err, "decode")
	}
	code := coupon.NormalizeCode(req.Code)
	if err := coupon.ValidateCode(code); err != nil {
		return entry{}, err
	}
	terms, err := req.CouponTerms.Terms()
	if err != nil {
		return entry{}, err
	}
	if err := terms.Validate(); err != nil {
		return entry{}, err
	}
	return entry{loc: loc, code: code, terms: terms, active: req.IsActive}, nil
}

// dedupe forwards the first valid occurrence of each code. The bloom filter
// answers most lookups; its positives are confirmed against the exact set,
// which also remembers where the code was first seen.
func dedupe(ctx context.Context, expected uint, in <-chan entry, out chan<- entry, st *stats) error {
	filter := bloom.NewWithEstimates(expected, bloomFPR)
	first := make(map[string]string)

	for e := range in {
		if filter.TestString(e.code) {
			if loc, ok := first[e.code]; ok {
				st.duplicate.Add(1)
				slog.Warn("duplicate coupon code",
					slog.String("code", e.code),
					slog.String("at", e.loc),
					slog.String("first", loc),
				)
				continue
			}
		}
		filter.AddString(e.code)
		first[e.code] = e.loc

		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func write(ctx context.Context, admin *coupon.Admin, e entry, st *stats) error {
	if admin == nil {
		st.created.Add(1)
		return nil
	}

	_, err := admin.Create(ctx, e.code, e.terms, e.active)
	var verr *coupon.ValidationError
	switch {
	case err == nil:
		if n := st.created.Add(1); n%progressEvery == 0 {
			slog.Info("write progress", slog.Int64("created", n))
		}
		return nil
	case errors.Is(err, coupon.ErrCodeExists):
		st.existing.Add(1)
		return nil
	case errors.As(err, &verr):
		st.invalid.Add(1)
		slog.Warn("invalid coupon definition", slog.String("at", e.loc), slog.String("error", err.Error()))
		return nil
	default:
		return errors.Wrapf(err, "create coupon %s (%s)", e.code, e.loc)
	}
}
