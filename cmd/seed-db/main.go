// Command seed-db prepares a database for local development: it runs the
// migrations, upserts an admin user with a known API key, and loads the
// products fixture.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/merchkit/catalog-api/internal/domain/auth"
	"github.com/merchkit/catalog-api/internal/repository"
)

const (
	upsertUserSQL = `INSERT INTO users (email, full_name, key_hash, roles, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (email) DO UPDATE
		SET key_hash = EXCLUDED.key_hash, roles = EXCLUDED.roles, active = TRUE
		RETURNING id`

	upsertProductSQL = `INSERT INTO products (title, slug, price, stock, description, gender, tags, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE
		SET title = EXCLUDED.title, price = EXCLUDED.price, stock = EXCLUDED.stock,
		    description = EXCLUDED.description, gender = EXCLUDED.gender,
		    tags = EXCLUDED.tags, user_id = EXCLUDED.user_id, updated_at = now()
		RETURNING id`

	deleteImagesSQL = `DELETE FROM product_images WHERE product_id = $1`
	insertImageSQL  = `INSERT INTO product_images (url, product_id) VALUES ($1, $2)`
)

type productJSON struct {
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Gender      string          `json:"gender"`
	Tags        []string        `json:"tags"`
	Images      []string        `json:"images"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		adminEmail   string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "email of the seeded admin user")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CATALOG_SEED_API_KEY env)")
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
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CATALOG_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CATALOG_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminEmail, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminEmail, apiKey, pepper string) error {
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

	adminID, err := seedAdmin(ctx, pool, adminEmail, apiKey, pepper)
	if err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	if err := seedProducts(ctx, pool, productsFile, adminID); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, apiKey, pepper string) (uuid.UUID, error) {
	slog.Info("seeding admin user", slog.String("email", email))

	var id uuid.UUID
	err := pool.QueryRow(ctx, upsertUserSQL,
		email, "Seed Admin", auth.HashKey(apiKey, pepper), []string{"admin", "user"},
	).Scan(&id)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "upsert admin user")
	}

	slog.Info("seeded admin user", slog.String("id", id.String()))
	return id, nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string, ownerID uuid.UUID) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		var id uuid.UUID
		err := pool.QueryRow(ctx, upsertProductSQL,
			p.Title, p.Slug, p.Price, p.Stock, p.Description, p.Gender, p.Tags, ownerID,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		// Images are fully replaced so re-seeding stays idempotent.
		if _, err := pool.Exec(ctx, deleteImagesSQL, id); err != nil {
			return errors.Wrapf(err, "delete images of %s", p.Slug)
		}
		for _, url := range p.Images {
			if _, err := pool.Exec(ctx, insertImageSQL, url, id); err != nil {
				return errors.Wrapf(err, "insert image of %s", p.Slug)
			}
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("id", id.String()))
	}

	return nil
}
