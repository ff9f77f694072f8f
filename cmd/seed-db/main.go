// Command seed-db loads demo catalog data, coupons, users and an admin API
// key into the database. Intended for development and integration test
// environments.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
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

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

type variantSeed struct {
	id       string
	name     string
	price    int64
	discount int64
	stock    int
}

type productSeed struct {
	id       string
	name     string
	slug     string
	category string
	variants []variantSeed
}

var products = []productSeed{
	{
		id: "espresso-beans", name: "Espresso Beans", slug: "espresso-beans", category: "coffee",
		variants: []variantSeed{
			{id: "espresso-beans-250", name: "250g", price: 1200, stock: 40},
			{id: "espresso-beans-1000", name: "1kg", price: 4000, discount: 400, stock: 15},
		},
	},
	{
		id: "moka-pot", name: "Moka Pot", slug: "moka-pot", category: "equipment",
		variants: []variantSeed{
			{id: "moka-pot-3cup", name: "3 cup", price: 2900, stock: 12},
			{id: "moka-pot-6cup", name: "6 cup", price: 3900, stock: 8},
		},
	},
	{
		id: "ceramic-mug", name: "Ceramic Mug", slug: "ceramic-mug", category: "accessories",
		variants: []variantSeed{
			{id: "ceramic-mug-std", name: "Standard", price: 1100, stock: 60},
		},
	},
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting catalog", slog.Int("products", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, slug, category)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, category = EXCLUDED.category`,
			p.id, p.name, p.slug, p.category)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}
		for _, v := range p.variants {
			_, err := pool.Exec(ctx, `INSERT INTO variants (id, product_id, name, price, discount, stock)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
					discount = EXCLUDED.discount, stock = EXCLUDED.stock`,
				v.id, p.id, v.name, v.price, v.discount, v.stock)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.id)
			}
		}
		slog.Info("upserted product", slog.String("id", p.id), slog.Int("variants", len(p.variants)))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	coupons := []struct {
		code  string
		kind  string
		value string
	}{
		{code: "WELCOME10", kind: "percentage", value: "10"},
		{code: "HAPPYHRS", kind: "percentage", value: "18"},
		{code: "FIVEOFF", kind: "fixed", value: "500"},
	}
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons (code, kind, value, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (code) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value, active = TRUE`,
			c.code, c.kind, c.value)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo users")

	users := []struct {
		id    string
		email string
		phone string
	}{
		{id: "demo-user", email: "demo@example.com", phone: "+35560000000"},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `INSERT INTO users (id, email, phone) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, phone = EXCLUDED.phone`,
			u.id, u.email, u.phone)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}
	}
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, active)
		VALUES ('default', $1, 'Default admin key', TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, active = TRUE`,
		keyHash)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
