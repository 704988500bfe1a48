package cli

import (
	"context"
	"fmt"
	"html"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/client"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/taskstate"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and change tasks on a running server",
	}

	cmd.AddCommand(
		newTasksListCmd(app),
		newTasksAddCmd(app),
		newTasksUpdateCmd(app),
		newTasksRemoveCmd(app),
	)
	return cmd
}

// connect builds a client and fetches the session's CSRF token.
func (a *App) connect(ctx context.Context, cmd *cobra.Command) (*client.Client, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := newClient(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("starting session with %s: %w", cfg.Client.BaseURL, err)
	}
	return c, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := taskstate.FilterAll
			if status != "" {
				if !model.Status(status).Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = taskstate.Filter(status)
			}

			c, err := app.connect(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			tasks, err := c.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			st := taskstate.Reduce(taskstate.New(), taskstate.Loaded{Tasks: tasks})
			st = taskstate.Reduce(st, taskstate.FilterChanged{Filter: filter})
			for _, t := range st.Visible() {
				printTask(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show tasks with this status")
	return cmd
}

func newTasksAddCmd(app *App) *cobra.Command {
	var (
		description string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			t, err := c.CreateTask(cmd.Context(), model.NewTask{
				Title:       args[0],
				Description: description,
				Status:      model.Status(status),
			})
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default pending)")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var title, description, status string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			var patch model.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("status") {
				s := model.Status(status)
				patch.Status = &s
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: pass --title, --description or --status")
			}

			c, err := app.connect(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			t, err := c.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func newTasksRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			c, err := app.connect(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", id)
			return nil
		},
	}
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printTask(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "%d\t%-11s\t%s\n", t.ID, t.Status, html.UnescapeString(t.Title))
}
