// Command seed はYAMLの商品定義をカタログに取り込みます。
//
//	seed import products.yaml [more.yaml...]
//	seed validate products.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefront_backend/internal/app/di"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
	"storefront_backend/internal/platform/config"
	"storefront_backend/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seed",
		Short:         "Manage storefront catalog data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newImportCmd(), newValidateCmd())
	return root
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file...]",
		Short: "Upsert products from YAML files into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := loadProducts(cmd.Context(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Setup(cfg.LogLevel)

			app, err := di.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := app.Close(); cerr != nil {
					slog.Error("failed to close resources", "error", cerr)
				}
			}()

			imported, err := app.Catalog.ImportProducts(cmd.Context(), products)
			if err != nil {
				return err
			}
			slog.Info("products imported", "count", len(imported), "backend", cfg.Catalog.Backend)
			for _, p := range imported {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
			}
			return nil
		},
	}
}

// newValidateCmd はDBに接続せずに定義ファイルを検証します。
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check YAML product files without writing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := loadProducts(cmd.Context(), args)
			if err != nil {
				return err
			}
			for i, p := range products {
				if err := catalogusecase.ValidateProduct(p); err != nil {
					return fmt.Errorf("product #%d (%s): %w", i, p.Name, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d products ok\n", len(products))
			return nil
		},
	}
}
