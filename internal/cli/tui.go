package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/app"
	"github.com/nhle/taskboard/internal/client"
	"github.com/nhle/taskboard/internal/model"
)

func newTUICmd(a *App) *cobra.Command {
	var (
		baseURL string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive terminal client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.Client.BaseURL = baseURL
			}

			// The TUI owns the terminal, so logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				w = f
			}

			c, err := newClient(w, cfg)
			if err != nil {
				return err
			}

			root := app.New(c, cfg.Client.Timeout,
				app.WithRefreshInterval(cfg.Client.RefreshInterval))
			p := tea.NewProgram(root, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running tui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (overrides client.base_url)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}

// newClient builds an API client from the client section of cfg.
func newClient(logOut io.Writer, cfg *model.AppConfig) (*client.Client, error) {
	logger, err := newLogger(logOut, cfg.Log)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger),
		client.WithReplayOnForbidden(cfg.Client.ReplayOnForbidden),
	)
}
