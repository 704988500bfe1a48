// Package cli wires the taskboard commands: the API server, the terminal
// client and a few scriptable task commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/model"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

// App carries flags shared by every command.
type App struct {
	ConfigPath string
}

// NewRootCmd builds the taskboard command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board API server and terminal client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the API server
  taskboard serve

  # Open the terminal client against a running server
  taskboard tui

  # Scriptable commands
  taskboard tasks list --status pending
  taskboard tasks add "Buy milk" --description "2 liters"
`),
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", model.DefaultConfigPath(), "config file path")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *App) loadConfig() (*model.AppConfig, error) {
	return model.LoadConfig(a.ConfigPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "taskboard "+version)
		},
	}
}
