package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/config"
	"stockroom.app/internal/migrate"
	"stockroom.app/internal/obs"
	"stockroom.app/internal/store/pg"
	"stockroom.app/ops/migrations"
)

var version = "dev"

var (
	dsnFlag     string
	configFlag  string
	timeoutFlag time.Duration
	costFlag    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "stockroom-migrate",
		Short:         "Schema migrations and seed data for the stockroom database",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "PostgreSQL DSN (defaults to STOCKROOM_PG_DSN)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", os.Getenv("STOCKROOM_CONFIG"), "path to config file")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 60*time.Second, "overall deadline")

	rootCmd.AddCommand(managerCmd("up", "Apply pending migrations", func(ctx context.Context, mgr *migrate.Manager, _ *sql.DB) error {
		return mgr.Up(ctx)
	}))
	rootCmd.AddCommand(managerCmd("down", "Roll back the latest migration", func(ctx context.Context, mgr *migrate.Manager, _ *sql.DB) error {
		return mgr.Down(ctx)
	}))
	rootCmd.AddCommand(managerCmd("seed", "Load reference and sample data", seedAndVerify))
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type managerFunc func(ctx context.Context, mgr *migrate.Manager, db *sql.DB) error

func managerCmd(use, short string, fn managerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager, db *sql.DB) error {
				if err := fn(ctx, mgr, db); err != nil {
					return fmt.Errorf("migrate %s: %w", use, err)
				}
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager, _ *sql.DB) error {
				history, err := mgr.Status(ctx)
				if err != nil {
					return fmt.Errorf("migrate status: %w", err)
				}
				for _, item := range history {
					fmt.Fprintln(cmd.OutOrStdout(), item)
				}
				return nil
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every permission the API enforces is defined",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, _ *migrate.Manager, db *sql.DB) error {
				return verifyPermissions(ctx, db)
			})
		},
	}
}

func seedAndVerify(ctx context.Context, mgr *migrate.Manager, db *sql.DB) error {
	if err := mgr.Seed(ctx); err != nil {
		return err
	}
	return verifyPermissions(ctx, db)
}

func verifyPermissions(ctx context.Context, db *sql.DB) error {
	codes, err := pg.New(db).PermissionCodes(ctx)
	if err != nil {
		return err
	}
	missing := auth.MissingPermissions(codes)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, p := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", p.Code, p.Description))
	}
	return fmt.Errorf("permissions table is missing: %s", strings.Join(names, ", "))
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash suitable for users.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.NewHasher(costFlag, 1).Hash(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&costFlag, "cost", 10, "bcrypt cost")
	return cmd
}

func withManager(parent context.Context, fn managerFunc) error {
	if parent == nil {
		parent = context.Background()
	}
	dsn, env, err := resolveDSN()
	if err != nil {
		return err
	}

	logger, err := obs.NewLogger(env, "info", "stockroom-migrate")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(parent, timeoutFlag)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrations.SQL(), migrations.Seeds(), migrate.WithLogger(logger.With(zap.String("component", "migrate"))))
	return fn(ctx, mgr, db)
}

func resolveDSN() (string, string, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return "", "", err
	}
	dsn := cfg.PG.DSN
	if dsnFlag != "" {
		dsn = dsnFlag
	}
	if dsn == "" {
		return "", "", errors.New("missing DSN: provide via --dsn or STOCKROOM_PG_DSN")
	}
	return dsn, cfg.Env, nil
}
