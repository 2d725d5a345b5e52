// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"partscatalog/internal/config"
	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
	"partscatalog/internal/domain/auth"
	"partscatalog/internal/domain/catalogs/manufacturer"
	"partscatalog/internal/domain/users"
	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/internal/infrastructure/storage/postgres/catalog_repo"
	"partscatalog/internal/infrastructure/storage/postgres/user_repo"
	"partscatalog/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.DSN()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txManager := postgres.NewTxManager(pool)

	log.Info("connected to database")

	admin, err := seedAdminUser(ctx, users.NewService(users.ServiceConfig{
		Repo: user_repo.NewUserRepo(txManager),
	}))
	if err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if cfg.Auth.JWTSecret != "" {
		token, expires, err := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Auth.JWTSecret)).
			GenerateAccessToken(admin.PublicID.String(), admin.Email, []string{"admin"})
		if err != nil {
			log.Warnw("failed to issue dev token", "error", err)
		} else {
			log.Infow("dev access token", "token", token, "expires_at", expires)
		}
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		auditService, err := postgres.NewAuditService(txManager)
		if err != nil {
			log.Fatalw("failed to create audit service", "error", err)
		}
		service := manufacturer.NewService(manufacturer.ServiceConfig{
			Repo:      catalog_repo.NewManufacturerRepo(txManager),
			TxManager: txManager,
			Audit:     auditService,
		})
		if err := seedDemoData(ctx, service, txManager, admin.PublicID.String()); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, svc *users.Service) (*users.User, error) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@partscatalog.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	u, err := svc.Register(ctx, users.RegisterInput{Name: "Admin", Email: email, Password: password})
	if apperror.IsDuplicate(err) {
		logger.Info(ctx, "admin user already exists", "email", email)
		return svc.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "admin user created", "email", email, "user_id", u.PublicID)
	return u, nil
}

type demoModel struct {
	name      string
	yearStart int
	yearEnd   *int
}

type demoManufacturer struct {
	name    string
	country string
	models  []demoModel
}

func year(y int) *int { return &y }

var demoCatalog = []demoManufacturer{
	{name: "Toyota", country: "JP", models: []demoModel{
		{name: "Corolla", yearStart: 1966},
		{name: "Camry", yearStart: 1982},
		{name: "Celica", yearStart: 1970, yearEnd: year(2006)},
	}},
	{name: "Volkswagen", country: "DE", models: []demoModel{
		{name: "Golf", yearStart: 1974},
		{name: "Passat", yearStart: 1973},
	}},
	{name: "Ford", country: "US", models: []demoModel{
		{name: "Mustang", yearStart: 1964},
		{name: "F-150", yearStart: 1975},
	}},
	{name: "Bosch", country: "DE"},
}

var modelColumns = []string{"public_id", "manufacturer_id", "name", "display_name", "slug", "year_start", "year_end"}

// seedDemoData creates manufacturers through the service, so slugs and the
// audit trail match API-created rows, then bulk-loads their models.
func seedDemoData(ctx context.Context, svc *manufacturer.Service, txManager *postgres.TxManager, actorID string) error {
	var rows [][]any
	for _, d := range demoCatalog {
		country := d.country
		m, err := svc.Create(ctx, manufacturer.CreateInput{
			Name:        d.name,
			DisplayName: d.name,
			CountryCode: &country,
		}, actorID)
		if apperror.IsDuplicate(err) {
			logger.Info(ctx, "manufacturer already exists, skipping", "name", d.name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create manufacturer %s: %w", d.name, err)
		}
		rows = append(rows, modelRows(m.ID, d.models)...)
	}

	inserter := postgres.NewBatchInserter(txManager)
	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := inserter.CopyFromSlice(ctx, "model", modelColumns, rows)
		if err != nil {
			return err
		}
		logger.Info(ctx, "demo models loaded", "count", n)
		return nil
	})
}

func modelRows(manufacturerID int64, models []demoModel) [][]any {
	rows := make([][]any, 0, len(models))
	for _, mo := range models {
		rows = append(rows, []any{
			id.New(), manufacturerID, mo.name, mo.name, manufacturer.Slugify(mo.name), mo.yearStart, mo.yearEnd,
		})
	}
	return rows
}
