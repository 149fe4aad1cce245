// seeder provisions accounts from a YAML fixture into the configured
// Postgres database and prints a bearer token for each.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/auth"
	"github.com/neighborfix/maintenance-service/internal/config"
	"github.com/neighborfix/maintenance-service/internal/observability"
	"github.com/neighborfix/maintenance-service/internal/persistence"
	"github.com/neighborfix/maintenance-service/internal/repository"
	"github.com/neighborfix/maintenance-service/internal/seed"
	"github.com/neighborfix/maintenance-service/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fixturePath string
		migrate     bool
		noTokens    bool
	)
	flagSet := pflag.NewFlagSet("seeder", pflag.ContinueOnError)
	flagSet.StringVarP(&fixturePath, "file", "f", "fixtures/accounts.yaml", "YAML fixture of accounts to provision")
	flagSet.BoolVar(&migrate, "migrate", false, "apply migrations before seeding")
	flagSet.BoolVar(&noTokens, "no-tokens", false, "do not print bearer tokens")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fixture, err := seed.Load(fixturePath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required; the in-memory store does not outlive this process")
	}
	if migrate {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	policy := repository.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Ledger.TxMaxAttempts
	accounts := service.NewAccountService(service.Dependencies{
		Store:             repository.NewPostgresStore(pg.PoolHandle(), policy),
		Logger:            logger,
		PlatformAccountID: cfg.Ledger.PlatformAccountID,
	})

	var issuer seed.TokenIssuer
	if !noTokens {
		issuer = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	results, err := seed.Apply(ctx, accounts, issuer, fixture)
	if err != nil {
		return err
	}
	logger.Info("seed applied", zap.String("file", fixturePath), zap.Int("accounts", len(results)))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tBALANCE\tCREATED\tTOKEN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.Account.ID, r.Account.Role, r.Account.Balance.StringFixed(2), r.Created, r.Token)
	}
	return w.Flush()
}
