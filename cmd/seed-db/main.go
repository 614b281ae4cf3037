package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/auth"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/repository"
)

type demoCoupon struct {
	Code   string
	Terms  coupon.Terms
	Active bool
}

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or COURSEMART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COURSEMART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COURSEMART_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or COURSEMART_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COURSEMART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL, 4)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	admin := coupon.NewAdmin(repository.NewCouponRepository(pool))
	if err := seedCoupons(ctx, admin, demoCoupons(time.Now().UTC())); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func demoCoupons(now time.Time) []demoCoupon {
	var (
		one      = int64(1)
		lastWeek = now.AddDate(0, 0, -7)
		nextWeek = now.AddDate(0, 0, 7)
	)
	return []demoCoupon{
		{Code: "WELCOME10", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "10% off any course",
		}},
		{Code: "SAVE5", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "5 off, stacks with other offers",
		}},
		{Code: "CAP15", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(20),
			MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(15)),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "20% off, at most 15",
		}},
		{Code: "FLAT10", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(10),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "10 off any course",
		}},
		{Code: "SOLO30", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(30),
			Courses:       coupon.AllCourses(),
			Description:   "30% off, cannot be combined",
		}},
		{Code: "GOONLY", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(25),
			Courses:       mustRestrict("go-101", "go-concurrency"),
			Stackable:     true,
			Description:   "25% off the Go track",
		}},
		{Code: "BIG50", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(20),
			MinAmount:     decimal.NewFromInt(50),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "20 off orders of 50 or more",
		}},
		{Code: "LASTSEAT", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(15),
			UsageLimit:    &one,
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "single use, first come first served",
		}},
		{Code: "EXPIRED", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(50),
			ValidFrom:     now.AddDate(0, -1, 0),
			ValidUntil:    &lastWeek,
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "ended last week",
		}},
		{Code: "FUTURE", Active: true, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(40),
			ValidFrom:     nextWeek,
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "starts next week",
		}},
		{Code: "RETIRED", Active: false, Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(25),
			Courses:       coupon.AllCourses(),
			Stackable:     true,
			Description:   "deactivated campaign",
		}},
	}
}

func mustRestrict(ids ...string) coupon.CourseScope {
	scope, err := coupon.RestrictedTo(ids...)
	if err != nil {
		panic(err)
	}
	return scope
}

func seedCoupons(ctx context.Context, admin *coupon.Admin, coupons []demoCoupon) error {
	slog.Info("seeding demo coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		_, err := admin.Create(ctx, c.Code, c.Terms, c.Active)
		switch {
		case errors.Is(err, coupon.ErrCodeExists):
			slog.Info("coupon already exists", slog.String("code", c.Code))
			continue
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}

		slog.Info("created coupon", slog.String("code", c.Code), slog.String("description", c.Terms.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, keys *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	if err := keys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeCouponsAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default admin key"))

	return nil
}
