// Package commands — сервисные команды stylectl: дозаполнение эмбеддингов и пересборка style-векторов.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/app"
	config "github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const closeTimeout = 15 * time.Second

var core *app.Core

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stylectl",
		Short: "Maintenance commands for the style recommendation service",
		Long: `stylectl runs one-off maintenance jobs against the same storage
and providers as the service.

Examples:
  stylectl backfill-embeddings --batch 100
  stylectl rebuild-style user-1 user-2`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env необязателен
			_ = godotenv.Load()

			log := logger.NewSlogLogger()
			cfg, err := config.Load(log)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			core, err = app.NewCore(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if core == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			return core.Closer.Close(ctx)
		},
	}

	root.AddCommand(NewBackfillCmd(), NewRebuildCmd())
	return root
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
