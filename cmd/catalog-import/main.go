// Command catalog-import loads products from gzip-compressed JSON Lines files.
//
// Every line is an object such as
//
//	{"name":"Latte","price":"4.20","stock":80,"active":true}
//
// Files are scanned concurrently. A product name found in more than one file
// is ambiguous and skipped; within one file the last line wins. Existing
// products are matched by name and updated, their stock set through the
// inventory ledger; unknown names are created.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pos/internal/domain/inventory"
	"github.com/xenking/kart-pos/internal/domain/product"
	"github.com/xenking/kart-pos/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	maxFiles      = 64
	maxLineSize   = 1 << 20
	progressEvery = 100_000
)

// record is one parsed catalog line.
type record struct {
	product.CreateRequest
	file string
	line int
}

// fileScan holds what pass 2 learned about one file.
type fileScan struct {
	path       string
	records    map[string]record
	candidates map[string]uint
	invalid    int
}

func main() {
	var (
		databaseURL string
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of products per file, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "scan files and report without writing")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: catalog-import [flags] FILE.jsonl.gz...")
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, expected, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, expected uint, dryRun bool) error {
	if len(files) > maxFiles {
		return errors.Errorf("at most %d files are supported, got %d", maxFiles, len(files))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, expected)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: parsing records")

	scans, err := scanFiles(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "scan files")
	}

	conflicts := findConflicts(scans)
	for _, name := range conflicts {
		slog.Warn("product name appears in several files, skipping", slog.String("name", name))
	}

	records := mergeRecords(scans, conflicts)
	slog.Info("records ready",
		slog.Int("records", len(records)),
		slog.Int("conflicts", len(conflicts)),
	)

	if dryRun || len(records) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	repo := postgres.NewProductRepository(pool)
	ledger := inventory.NewLedger(repo, store)

	return writeProducts(ctx, store, repo, ledger, records)
}

// nameKey is the case-insensitive identity of a product name.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildBloomFilters creates one bloom filter of product names per file,
// concurrently.
func buildBloomFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var count int
			err := streamGzLines(ctx, path, func(_ int, line []byte) {
				req, err := parseRecord(line)
				if err != nil {
					return
				}
				filter.AddString(nameKey(req.Name))
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", filepath.Base(path)), slog.Int("names", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFiles parses every file again, keeping its valid records and marking
// names that other files' filters may also contain.
func scanFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]fileScan, error) {
	scans := make([]fileScan, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			scan := fileScan{
				path:       path,
				records:    make(map[string]record),
				candidates: make(map[string]uint),
			}
			fileBit := uint(1) << uint(i)

			err := streamGzLines(ctx, path, func(n int, line []byte) {
				req, err := parseRecord(line)
				if err == nil {
					err = req.Validate()
				}
				if err != nil {
					scan.invalid++
					slog.Warn("skipping invalid line",
						slog.String("file", filepath.Base(path)),
						slog.Int("line", n),
						slog.String("error", err.Error()),
					)
					return
				}

				key := nameKey(req.Name)
				scan.records[key] = record{CreateRequest: req, file: filepath.Base(path), line: n}
				for j, f := range filters {
					if j != i && f.TestString(key) {
						scan.candidates[key] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}

			slog.Info("pass 2 complete",
				slog.String("file", filepath.Base(path)),
				slog.Int("records", len(scan.records)),
				slog.Int("candidates", len(scan.candidates)),
				slog.Int("invalid", scan.invalid),
			)
			scans[i] = scan
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scans, nil
}

// findConflicts returns, sorted, the names that really occur in two or more
// files. Bloom false positives drop out because each file only sets its own
// bit for names it contains.
func findConflicts(scans []fileScan) []string {
	merged := make(map[string]uint)
	for _, s := range scans {
		for name, mask := range s.candidates {
			merged[name] |= mask
		}
	}

	var conflicts []string
	for name, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts = append(conflicts, name)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// mergeRecords flattens the per-file records minus conflicts, sorted by name
// for a stable write order.
func mergeRecords(scans []fileScan, conflicts []string) []record {
	skip := make(map[string]struct{}, len(conflicts))
	for _, name := range conflicts {
		skip[name] = struct{}{}
	}

	var out []record
	for _, s := range scans {
		for key, r := range s.records {
			if _, ok := skip[key]; ok {
				continue
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return nameKey(out[i].Name) < nameKey(out[j].Name)
	})
	return out
}

// parseRecord decodes one JSON line.
func parseRecord(line []byte) (product.CreateRequest, error) {
	req := product.CreateRequest{Active: true}
	d := jx.DecodeBytes(line)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			req.Name, err = d.Str()
		case "price":
			req.Price, err = decodePrice(d)
		case "stock":
			req.Stock, err = d.Int()
		case "active":
			req.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return product.CreateRequest{}, errors.Wrap(err, "decode line")
	}
	return req, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		return decimal.Decimal{}, errors.New("price must be a number")
	}
	return decimal.NewFromString(raw)
}

// streamGzLines opens a gzip-compressed file and calls fn for each non-empty
// line with its 1-based number.
func streamGzLines(ctx context.Context, path string, fn func(n int, line []byte)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(n, line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writeProducts upserts each record in its own transaction.
func writeProducts(
	ctx context.Context,
	store *postgres.Store,
	repo *postgres.ProductRepository,
	ledger *inventory.Ledger,
	records []record,
) error {
	slog.Info("writing products to database", slog.Int("count", len(records)))

	var created, updated int
	for i, r := range records {
		now := time.Now().UTC()
		p := &product.Product{
			ID:        uuid.New().String(),
			Name:      r.Name,
			Price:     r.Price.Round(2),
			Stock:     r.Stock,
			Active:    r.Active,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := store.InTx(ctx, func(ctx context.Context) error {
			found, err := repo.UpdateByName(ctx, p)
			if err != nil {
				return err
			}
			if found {
				updated++
				return ledger.Set(ctx, p.ID, p.Stock, "import:"+r.file)
			}
			created++
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			return ledger.Open(ctx, p.ID, p.Stock, "import:"+r.file)
		})
		if err != nil {
			return errors.Wrapf(err, "write product %s", r.Name)
		}

		if (i+1)%1000 == 0 || i+1 == len(records) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(records)))
		}
	}

	slog.Info("products written", slog.Int("created", created), slog.Int("updated", updated))
	return nil
}
