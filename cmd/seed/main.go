package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/cafe-pos/api/internal/auth"
	"github.com/cafe-pos/api/internal/config"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
)

type seedProduct struct {
	name  string
	price string
	stock int32
}

var menu = []seedProduct{
	{"Kopi Susu", "18000", 100},
	{"Americano", "22000", 100},
	{"Es Teh Manis", "8000", 200},
	{"Croissant", "25000", 30},
	{"Nasi Goreng", "35000", 50},
	{"Pisang Goreng", "15000", 40},
}

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "seed tables, products and opening stock for development",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tables", Value: 8, Usage: "number of tables to create"},
			&cli.StringFlag{Name: "name", Value: "Dev Manager", Usage: "display name on the printed token"},
			&cli.StringFlag{Name: "role", Value: enum.UserRoleManager, Usage: "role on the printed token"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	ctx := c.Context
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}
	log.Info("connected to database")

	queries := database.New(pool)
	engine := service.New(pool, func(db database.DBTX) service.Store {
		return database.New(db)
	}, service.Options{TxTimeout: cfg.TxTimeout})

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := seedTables(ctx, queries.WithTx(tx), c.Int("tables")); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tables")
	}
	if err := seedProducts(ctx, queries, engine.Stock); err != nil {
		return err
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), c.String("name"), c.String("role"), 0)
	if err != nil {
		return errors.Wrap(err, "generate token")
	}
	log.Info("seed completed successfully")
	fmt.Println(token)
	return nil
}

// seedTables creates tables 1..n, skipping numbers that already exist.
// The caller runs it in one transaction so a partial floor is never left behind.
func seedTables(ctx context.Context, q *database.Queries, n int) error {
	existing, err := q.ListTables(ctx)
	if err != nil {
		return errors.Wrap(err, "list tables")
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.TableNumber] = true
	}

	for i := 1; i <= n; i++ {
		number := strconv.Itoa(i)
		if have[number] {
			continue
		}
		t, err := q.CreateTable(ctx, number)
		if err != nil {
			return errors.Wrapf(err, "create table %s", number)
		}
		log.WithFields(log.Fields{"table_id": t.ID, "table_number": number}).Info("created table")
	}
	return nil
}

// seedProducts creates the menu. Opening stock goes through the ledger as a
// purchase so the counter reconciles from the first transaction.
func seedProducts(ctx context.Context, q *database.Queries, stock *service.StockLedger) error {
	existing, err := q.ListProducts(ctx, false)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	for _, item := range menu {
		if have[item.name] {
			log.WithField("product", item.name).Info("product exists, skipping")
			continue
		}
		p, err := q.CreateProduct(ctx, database.CreateProductParams{
			Name:     item.name,
			Price:    database.DecimalToNumeric(decimal.RequireFromString(item.price)),
			IsActive: true,
		})
		if err != nil {
			return errors.Wrapf(err, "create product %s", item.name)
		}
		if _, err := stock.ReceiveStock(ctx, service.ReceiveStockRequest{
			ProductID: p.ID.String(),
			Quantity:  item.stock,
			Notes:     "opening stock",
		}); err != nil {
			return errors.Wrapf(err, "receive opening stock for %s", item.name)
		}
	}
	return nil
}
