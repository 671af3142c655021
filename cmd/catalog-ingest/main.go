// Command catalog-ingest bulk-loads product dumps into the catalog. Dumps are
// gzip-compressed JSONL files (one product object per line); all files in the
// data directory are streamed concurrently, slugs already seen are skipped,
// and the survivors are upserted under a single owner.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/merchkit/catalog-api/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
)

const (
	getOwnerSQL = `SELECT id FROM users WHERE email = $1 AND active = TRUE`

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

type productLine struct {
	Title       string
	Slug        string
	Price       decimal.Decimal
	Stock       int
	Description string
	Gender      string
	Tags        []string
	Images      []string
}

func main() {
	var (
		dataDir     string
		databaseURL string
		ownerEmail  string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing products*.jsonl.gz dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&ownerEmail, "owner-email", "admin@example.com", "email of the user owning ingested products")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, ownerEmail); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, ownerEmail string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "products*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob dump files")
	}
	if len(files) == 0 {
		return errors.Errorf("no products*.jsonl.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var ownerID uuid.UUID
	if err := pool.QueryRow(ctx, getOwnerSQL, ownerEmail).Scan(&ownerID); err != nil {
		return errors.Wrapf(err, "resolve owner %s (run seed-db first)", ownerEmail)
	}

	slog.Info("ingesting dumps", slog.Int("files", len(files)), slog.String("owner", ownerEmail))

	// Readers stream and parse concurrently; a single writer owns the bloom
	// filter and the database so slug dedup needs no locking.
	lines := make(chan productLine, 1024)

	g, ctx := errgroup.WithContext(ctx)
	readers, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		readers.Go(streamFile(ctx, f, lines))
	}
	g.Go(func() error {
		defer close(lines)
		return readers.Wait()
	})
	g.Go(func() error {
		return writeProducts(ctx, pool, ownerID, lines)
	})

	return g.Wait()
}

// streamFile decompresses one dump and sends its parsed lines.
func streamFile(ctx context.Context, path string, out chan<- productLine) func() error {
	return func() error {
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

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			p, err := parseLine(line)
			if err != nil {
				return errors.Wrapf(err, "parse line %d of %s", count+1, path)
			}

			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("read progress", slog.String("file", path), slog.Uint64("lines", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete", slog.String("file", path), slog.Uint64("lines", count))
		return nil
	}
}

// parseLine decodes one JSONL product object.
func parseLine(data []byte) (productLine, error) {
	var p productLine
	d := jx.DecodeBytes(data)

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			p.Title, err = d.Str()
		case "slug":
			p.Slug, err = d.Str()
		case "price":
			var num jx.Num
			if num, err = d.Num(); err == nil {
				p.Price, err = decimal.NewFromString(num.String())
			}
		case "stock":
			p.Stock, err = d.Int()
		case "description":
			p.Description, err = d.Str()
		case "gender":
			p.Gender, err = d.Str()
		case "tags":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				p.Tags = append(p.Tags, s)
				return err
			})
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				p.Images = append(p.Images, s)
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	if p.Slug == "" || p.Title == "" {
		return p, errors.New("product line missing title or slug")
	}
	return p, nil
}

// writeProducts upserts parsed lines, skipping slugs that already went in
// during this run.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, ownerID uuid.UUID, lines <-chan productLine) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var written, skipped uint64

	for p := range lines {
		if seen.TestOrAddString(p.Slug) {
			skipped++
			continue
		}

		var id uuid.UUID
		err := pool.QueryRow(ctx, upsertProductSQL,
			p.Title, p.Slug, p.Price, p.Stock, p.Description, p.Gender, p.Tags, ownerID,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		if _, err := pool.Exec(ctx, deleteImagesSQL, id); err != nil {
			return errors.Wrapf(err, "delete images of %s", p.Slug)
		}
		for _, url := range p.Images {
			if _, err := pool.Exec(ctx, insertImageSQL, url, id); err != nil {
				return errors.Wrapf(err, "insert image of %s", p.Slug)
			}
		}

		written++
		if written%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		}
	}

	slog.Info("write complete", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
	return nil
}
