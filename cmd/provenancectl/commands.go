package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/logger"
	"github.com/provenance-ledger/internal/platform/persistence"
	"github.com/provenance-ledger/internal/provenance"
	"github.com/spf13/cobra"
)

// env is what a command runs against
type env struct {
	cfg      *config.Config
	log      *slog.Logger
	backends *data.Backends
}

// openFunc loads configuration and, when withStores is set, connects the stores
type openFunc func(ctx context.Context, configName string, withStores bool) (*env, error)

func openEnv(ctx context.Context, configName string, withStores bool) (*env, error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: logger.NewLogger(cfg)}
	if withStores {
		if e.backends, err = data.Open(ctx, cfg, e.log); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) close(ctx context.Context) {
	if e.backends == nil {
		return
	}
	if err := e.backends.Close(ctx); err != nil {
		e.log.Error("Error closing storage connections", "error", err)
	}
}

func newRootCommand(open openFunc) *cobra.Command {
	var configName string
	cmd := &cobra.Command{
		Use:          "provenancectl",
		Short:        "Operator CLI for the provenance ledger",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configName, "config", "c", "api_gateway", "Base name of the .env config file")

	with := func(withStores bool, run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context(), configName, withStores)
			if err != nil {
				return err
			}
			defer e.close(context.Background())
			return run(cmd, args, e)
		}
	}

	cmd.AddCommand(
		newMigrateCmd(with),
		newVerifyCmd(with),
		newTraceCmd(with),
	)
	return cmd
}

type runner func(withStores bool, run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error

func newMigrateCmd(with runner) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: with(false, func(cmd *cobra.Command, _ []string, e *env) error {
			pg := e.cfg.Postgres
			if !statusOnly {
				if err := persistence.RunMigrations(pg.URL, pg.MigrationsPath); err != nil {
					return err
				}
			}
			version, dirty, err := persistence.MigrationVersion(pg.URL, pg.MigrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only print the applied version")
	return cmd
}

func newVerifyCmd(with runner) *cobra.Command {
	var (
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "verify [product-id...]",
		Short: "Check hash chains and lifecycle replay",
		Long: `Verifies the named products, or every product changed within --since
when none are named. Exits non-zero when any product fails.`,
		RunE: with(true, func(cmd *cobra.Command, args []string, e *env) error {
			ctx := cmd.Context()
			ids := args
			if len(ids) == 0 {
				var err error
				ids, err = e.backends.Store.RecentlyUpdated(ctx, time.Now().Add(-since), limit)
				if err != nil {
					return err
				}
			}

			core := e.backends.Core(e.cfg)
			failed := 0
			for _, id := range ids {
				v, err := core.Registry.Check(ctx, id)
				if err != nil {
					return fmt.Errorf("verify %s: %w", id, err)
				}
				status := "ok"
				if !v.Healthy() {
					status = "FAILED: " + v.Problem
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\trecords=%d\tmerkle_root=%s\t%s\n", v.ProductID, v.RecordCount, v.MerkleRoot, status)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d products failed verification", failed, len(ids))
			}
			return nil
		}),
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Window of recently changed products to verify")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Maximum products to verify without explicit ids")
	return cmd
}

func newTraceCmd(with runner) *cobra.Command {
	var actorID, role string
	cmd := &cobra.Command{
		Use:   "trace <product-id>",
		Short: "Print a product's trace as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: with(true, func(cmd *cobra.Command, args []string, e *env) error {
			r, err := actor.ParseRole(role)
			if err != nil {
				return err
			}
			a := actor.New(actorID, r)
			if !a.Verified() {
				return errors.New("--actor-id is required")
			}

			trace, err := e.backends.Core(e.cfg).Tracer.Trace(cmd.Context(), a, args[0], ledger.TimelineOptions{})
			if err != nil {
				return err
			}
			return writeJSON(cmd, trace)
		}),
	}
	cmd.Flags().StringVar(&actorID, "actor-id", "", "Identity to query as")
	cmd.Flags().StringVar(&role, "role", string(actor.RoleAdmin), "Role of the querying identity")
	return cmd
}

func writeJSON(cmd *cobra.Command, trace *provenance.Trace) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(trace)
}
