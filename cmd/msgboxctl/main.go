// Command msgboxctl operates a msgbox deployment from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbaliyan/msgbox/internal/app"
	"github.com/rbaliyan/msgbox/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logger     *slog.Logger
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "msgboxctl",
		Short:        "Manage msgbox mailboxes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			logger = cfg.Log.NewLogger()
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to msgbox.yaml (default: ./msgbox.yaml)")

	root.AddCommand(migrateCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(conversationsCmd())
	root.AddCommand(conversationCmd())
	root.AddCommand(invitationsCmd())
	root.AddCommand(alertsCmd())
	root.AddCommand(countsCmd())
	root.AddCommand(statusCmd("archive", "Archive a message"))
	root.AddCommand(statusCmd("trash", "Move a message to trash"))
	root.AddCommand(statusCmd("restore", "Restore an archived or trashed message"))
	root.AddCommand(readCmd())
	root.AddCommand(configCmd())
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

// withApp opens the configured service, runs fn and closes it again.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()
	return fn(a)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Dump(cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("dump config: %w", err)
			}
			return nil
		},
	})
	return cmd
}
