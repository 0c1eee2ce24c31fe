package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	accounts "github.com/goliatone/go-accounts"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const usage = `usage: seed-users [options] <csv_path>

Creates student accounts from a CSV file. The file needs an email column;
first_name, last_name, and password columns are optional.

options:
`

func main() {
	fs := flag.NewFlagSet("seed-users", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	dsn := fs.String("dsn", os.Getenv("ACCOUNTS_DSN"), "database DSN, defaults to $ACCOUNTS_DSN")
	defaultPassword := fs.String("default-password", "", "password for rows without one")
	update := fs.Bool("update", false, "apply changes to existing accounts")
	dryRun := fs.Bool("dry-run", false, "classify rows without writing")

	if err := fs.Parse(os.Args[1:]); err != nil {
		exitf("Error: %v", err)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	if *dsn == "" {
		exitf("Error: no database DSN, set --dsn or $ACCOUNTS_DSN")
	}

	ctx := context.Background()

	db, err := openDB(*dsn)
	if err != nil {
		exitf("Error: %v", err)
	}
	defer db.Close()

	if err := accounts.CreateSchema(ctx, db); err != nil {
		exitf("Error: %v", err)
	}

	repo := accounts.NewRepositoryManager(db)
	lifecycle := accounts.NewLifecycle(repo)
	importer := accounts.NewImporter(lifecycle, repo)

	cfg := accounts.ImportConfig{
		CSVPath:         fs.Arg(0),
		DefaultPassword: *defaultPassword,
		Update:          *update,
		DryRun:          *dryRun,
	}

	if _, err := importer.Run(ctx, cfg, os.Stdout); err != nil {
		exitf("Error: %v", err)
	}
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	if err := sqldb.Ping(); err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
