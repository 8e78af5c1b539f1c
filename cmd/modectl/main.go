// modectl flips the runtime delivery mode between the direct-mailbox and
// Postmark backends. The mode lives in the shared store, so running API and
// responder processes pick the change up on their next dispatch.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modectl",
		Short: "Switch the MailBridge delivery mode",
	}

	rootCmd.AddCommand(
		switchCommand(config.ModeICloud, "Send via the iCloud SMTP/IMAP account"),
		switchCommand(config.ModePostmark, "Send via the Postmark API"),
		statusCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func switchCommand(mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kv, err := connect()
			if err != nil {
				return err
			}
			defer kv.Close()

			if err := store.SetMode(context.Background(), kv, mode); err != nil {
				return fmt.Errorf("set mode: %w", err)
			}

			fmt.Printf("Switched to %s mode (was configured default: %s)\n", mode, cfg.Global.Mode)
			return nil
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active delivery mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kv, err := connect()
			if err != nil {
				return err
			}
			defer kv.Close()

			mode, err := store.GetMode(context.Background(), kv, cfg.Global.Mode)
			if err != nil {
				return fmt.Errorf("read mode: %w", err)
			}

			fmt.Printf("Current delivery mode: %s\n", mode)
			return nil
		},
	}
}

func connect() (*config.Config, *store.RedisStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	kv, err := store.NewRedis(cfg.Global.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return cfg, kv, nil
}
