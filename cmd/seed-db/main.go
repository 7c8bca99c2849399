package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-pos/internal/domain/auth"
	"github.com/xenking/kart-pos/internal/domain/discount"
	"github.com/xenking/kart-pos/internal/domain/inventory"
	"github.com/xenking/kart-pos/internal/domain/money"
	"github.com/xenking/kart-pos/internal/domain/product"
	"github.com/xenking/kart-pos/internal/domain/user"
	"github.com/xenking/kart-pos/internal/storage/postgres"
)

type fixture struct {
	Users     []userFixture     `yaml:"users"`
	Products  []productFixture  `yaml:"products"`
	Discounts []discountFixture `yaml:"discounts"`
}

type userFixture struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Role      string `yaml:"role"`
}

type productFixture struct {
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
	Stock  int    `yaml:"stock"`
	Active *bool  `yaml:"active"`
}

type discountFixture struct {
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`
	Value    string     `yaml:"value"`
	Product  string     `yaml:"product"`
	StartsAt *time.Time `yaml:"starts_at"`
	EndsAt   *time.Time `yaml:"ends_at"`
}

type options struct {
	databaseURL string
	fixtureFile string
	jwtSecret   string
	jwtIssuer   string
	tokenTTL    time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.fixtureFile, "fixture", "db/seed/fixture.yaml", "path to the YAML fixture")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret to sign development tokens with (or JWT_SECRET env)")
	flag.StringVar(&opts.jwtIssuer, "jwt-issuer", "kart-pos", "issuer of development tokens")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of development tokens")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.jwtSecret == "" {
		opts.jwtSecret = os.Getenv("JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	fx, err := loadFixture(opts.fixtureFile)
	if err != nil {
		return errors.Wrap(err, "load fixture")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	users, err := seedUsers(ctx, postgres.NewUserRepository(pool), fx.Users)
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	store := postgres.NewStore(pool)
	productRepo := postgres.NewProductRepository(pool)
	ledger := inventory.NewLedger(productRepo, store)
	if err := seedProducts(ctx, store, productRepo, ledger, fx.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	discounts := discount.NewService(postgres.NewDiscountRepository(pool), store)
	if err := seedDiscounts(ctx, productRepo, discounts, fx.Discounts); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if opts.jwtSecret == "" {
		slog.Info("no JWT secret given, skipping development tokens")
		return nil
	}
	tokens := auth.NewTokens([]byte(opts.jwtSecret), opts.jwtIssuer)
	for i := range users {
		raw, err := tokens.Sign(&users[i], opts.tokenTTL)
		if err != nil {
			return errors.Wrapf(err, "sign token for %s", users[i].Email)
		}
		fmt.Printf("%s\t%s\t%s\n", users[i].Email, users[i].Role, raw)
	}
	return nil
}

func loadFixture(path string) (*fixture, error) {
	slog.Info("reading fixture file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture file")
	}
	return parseFixture(data)
}

func parseFixture(data []byte) (*fixture, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, errors.Wrap(err, "parse fixture YAML")
	}
	for _, u := range fx.Users {
		if !user.Role(u.Role).Valid() {
			return nil, errors.Errorf("user %s: unknown role %q", u.Email, u.Role)
		}
	}
	for _, p := range fx.Products {
		if _, err := decimal.NewFromString(p.Price); err != nil {
			return nil, errors.Wrapf(err, "product %s: price", p.Name)
		}
	}
	for _, d := range fx.Discounts {
		if _, err := decimal.NewFromString(d.Value); err != nil {
			return nil, errors.Wrapf(err, "discount %s: value", d.Name)
		}
	}
	return &fx, nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, fixtures []userFixture) ([]user.User, error) {
	slog.Info("upserting users", slog.Int("count", len(fixtures)))

	users := make([]user.User, 0, len(fixtures))
	for _, f := range fixtures {
		u := user.User{
			ID:        uuid.New().String(),
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Email:     strings.ToLower(f.Email),
			Role:      user.Role(f.Role),
			CreatedAt: time.Now(),
		}
		if err := repo.Upsert(ctx, &u); err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", f.Email)
		}
		users = append(users, u)

		slog.Info("upserted user", slog.String("id", u.ID), slog.String("email", u.Email))
	}
	return users, nil
}

func seedProducts(
	ctx context.Context,
	store *postgres.Store,
	repo *postgres.ProductRepository,
	ledger *inventory.Ledger,
	fixtures []productFixture,
) error {
	slog.Info("upserting products", slog.Int("count", len(fixtures)))

	for _, f := range fixtures {
		p, err := f.product()
		if err != nil {
			return err
		}

		var updated bool
		err = store.InTx(ctx, func(ctx context.Context) error {
			updated, err = repo.UpdateByName(ctx, p)
			if err != nil {
				return errors.Wrap(err, "update")
			}
			if updated {
				return ledger.Set(ctx, p.ID, p.Stock, "seed")
			}
			if err := repo.Create(ctx, p); err != nil {
				return errors.Wrap(err, "create")
			}
			return ledger.Open(ctx, p.ID, p.Stock, "seed")
		})
		if err != nil {
			return errors.Wrapf(err, "seed product %s", f.Name)
		}

		slog.Info("upserted product", slog.String("name", p.Name), slog.Bool("created", !updated))
	}
	return nil
}

func (f productFixture) product() (*product.Product, error) {
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return nil, errors.Wrapf(err, "product %s: price", f.Name)
	}
	if err := money.Check("price", price); err != nil {
		return nil, errors.Wrapf(err, "product %s", f.Name)
	}
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	now := time.Now()
	return &product.Product{
		ID:        uuid.New().String(),
		Name:      f.Name,
		Price:     price.Round(2),
		Stock:     f.Stock,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func seedDiscounts(ctx context.Context, products *postgres.ProductRepository, svc *discount.Service, fixtures []discountFixture) error {
	slog.Info("creating discounts", slog.Int("count", len(fixtures)))

	live, err := products.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	byName := make(map[string]string, len(live))
	for _, p := range live {
		byName[strings.ToLower(p.Name)] = p.ID
	}

	for _, f := range fixtures {
		in := discount.Input{
			Name:     f.Name,
			Kind:     discount.Kind(f.Type),
			Value:    decimal.RequireFromString(f.Value),
			StartsAt: f.StartsAt,
			EndsAt:   f.EndsAt,
			Active:   true,
		}
		if f.Product != "" {
			id, ok := byName[strings.ToLower(f.Product)]
			if !ok {
				return errors.Errorf("discount %s: unknown product %q", f.Name, f.Product)
			}
			in.ProductID = &id
		}

		d, err := svc.Create(ctx, in)
		if errors.Is(err, discount.ErrOverlap) {
			slog.Info("discount already present, skipping", slog.String("name", f.Name))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create discount %s", f.Name)
		}

		slog.Info("created discount", slog.String("id", d.ID), slog.String("name", d.Name))
	}
	return nil
}
