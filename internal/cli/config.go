package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/model"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(app.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", app.ConfigPath)
			}
			if err := model.SaveConfig(app.ConfigPath, model.DefaultAppConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", app.ConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server.addr=%s\n", cfg.Server.Addr)
			fmt.Fprintf(out, "server.db_path=%s\n", cfg.Server.DBPath)
			fmt.Fprintf(out, "server.allowed_origin=%s\n", cfg.Server.AllowedOrigin)
			fmt.Fprintf(out, "server.shutdown_timeout=%s\n", cfg.Server.ShutdownTimeout)
			fmt.Fprintf(out, "session.store=%s\n", cfg.Session.Store)
			fmt.Fprintf(out, "session.ttl=%s\n", cfg.Session.TTL)
			fmt.Fprintf(out, "session.redis_addr=%s\n", cfg.Session.RedisAddr)
			fmt.Fprintf(out, "session.secure_cookie=%t\n", cfg.Session.SecureCookie)
			fmt.Fprintf(out, "client.base_url=%s\n", cfg.Client.BaseURL)
			fmt.Fprintf(out, "client.timeout=%s\n", cfg.Client.Timeout)
			fmt.Fprintf(out, "client.refresh_interval=%s\n", cfg.Client.RefreshInterval)
			fmt.Fprintf(out, "client.replay_on_forbidden=%t\n", cfg.Client.ReplayOnForbidden)
			fmt.Fprintf(out, "log.level=%s\n", cfg.Log.Level)
			fmt.Fprintf(out, "log.format=%s\n", cfg.Log.Format)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
