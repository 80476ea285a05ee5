package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/infrastructure/bootstrap"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/logger"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		mode   string
		output string
		full   bool
	)

	cmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Run one revenue reconciliation and print the snapshot summary",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, mode, output, full, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Override reconcile.mode (strict or lenient)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&full, "full", false, "Write the full snapshot including profiles")

	return cmd
}

func run(ctx context.Context, mode, output string, full bool, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if mode != "" {
		cfg.Reconcile.Mode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to assemble reconciler", zap.Error(err))
		return err
	}
	defer app.Close()

	snapshot, err := app.Service.Reconcile(ctx)
	if err != nil {
		log.Error("Reconciliation failed", zap.Error(err))
		return err
	}

	var payload interface{} = snapshot.Summary()
	if full {
		payload = snapshot
	}

	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	log.Info("Reconciliation completed",
		zap.String("run_id", snapshot.RunID.String()),
		zap.Int("profiles", len(snapshot.Profiles)),
		zap.Int("warnings", len(snapshot.Warnings)),
		zap.String("total_revenue_normalized", snapshot.TotalRevenueNormalized.String()))

	return nil
}
