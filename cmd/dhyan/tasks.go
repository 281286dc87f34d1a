package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dori/dhyan/internal/analytics"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/persist"
	"github.com/dori/dhyan/internal/timer"
	"github.com/spf13/cobra"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// withApp opens the app, runs fn and closes it, keeping the first error
func withApp(g *globalFlags, fn func(*app.App) error, opts ...app.Option) (err error) {
	a, err := g.open(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

// withTask resolves an id prefix and hands the full id to fn
func withTask(g *globalFlags, prefix string, fn func(*app.App, model.Task) error) error {
	return withApp(g, func(a *app.App) error {
		id, err := a.ResolveID(prefix)
		if err != nil {
			return err
		}
		task, err := a.Store.Get(id)
		if err != nil {
			return err
		}
		return fn(a, task)
	})
}

func addCmd(g *globalFlags) *cobra.Command {
	var (
		description string
		estimate    int
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a pending task",
		Example: `  dhyan add "Write report" -e 45
  dhyan add Review PR -d "the storage refactor"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return withApp(g, func(a *app.App) error {
				id, err := a.Store.Add(title, description, estimate)
				if err != nil {
					return err
				}
				task, err := a.Store.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n",
					shortID(id), task.Title, timer.FormatMinutes(float64(task.EstimatedTime)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "optional notes")
	cmd.Flags().IntVarP(&estimate, "estimate", "e", model.DefaultEstimate, "estimated minutes (15-480)")
	return cmd
}

func listCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List today's tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app.App) error {
				tasks := a.ListTasks()
				if asJSON {
					data, err := persist.Encode(tasks)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				printTasks(cmd.OutOrStdout(), a, tasks)
				return nil
			}, app.Shared())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored JSON")
	return cmd
}

func printTasks(w io.Writer, a *app.App, tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks yet. Add one with: dhyan add <title>")
		return
	}

	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(task.Order + 1),
			shortID(task.ID),
			task.Status.String(),
			task.Title,
			timing(a, &task),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "STATUS", "TITLE", "TIME").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func timing(a *app.App, task *model.Task) string {
	estimate := timer.FormatMinutes(float64(task.EstimatedTime))
	switch task.Status {
	case model.StatusInProgress:
		state := a.TimerState(task)
		return timer.FormatClock(state.Elapsed) + " / " + estimate
	case model.StatusCompleted:
		return timer.FormatMinutes(task.Duration().Minutes()) + " of " + estimate
	default:
		return estimate
	}
}

func startCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start timing a task; any other running task goes back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTask(g, args[0], func(a *app.App, task model.Task) error {
				if err := a.Store.Start(task.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started %s %s\n", shortID(task.ID), task.Title)
				return nil
			})
		},
	}
}

func completeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "complete <id>",
		Aliases: []string{"done"},
		Short:   "Complete the running task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTask(g, args[0], func(a *app.App, task model.Task) error {
				if err := a.Store.Complete(task.ID); err != nil {
					return err
				}
				done, err := a.Store.Get(task.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Completed %s in %s\n",
					done.Title, timer.FormatMinutes(done.Duration().Minutes()))
				return nil
			})
		},
	}
}

func deleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTask(g, args[0], func(a *app.App, task model.Task) error {
				if err := a.Store.Delete(task.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", shortID(task.ID), task.Title)
				return nil
			})
		},
	}
}

func editCmd(g *globalFlags) *cobra.Command {
	var (
		title       string
		description string
		estimate    int
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title, notes or estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("estimate") {
				patch.EstimatedTime = &estimate
			}
			if patch.IsEmpty() {
				return errors.New("nothing to change: pass --title, --description or --estimate")
			}

			return withTask(g, args[0], func(a *app.App, task model.Task) error {
				if err := a.Store.Update(task.ID, patch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", shortID(task.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new notes")
	cmd.Flags().IntVarP(&estimate, "estimate", "e", 0, "new estimate in minutes (15-480)")
	return cmd
}

func moveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a task to a 1-based position in the list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil || pos < 1 {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return withTask(g, args[0], func(a *app.App, task model.Task) error {
				if err := a.Store.Move(task.ID, pos-1); err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), a, a.ListTasks())
				return nil
			})
		},
	}
}

func statsCmd(g *globalFlags) *cobra.Command {
	var (
		scopeName string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show today's productivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app.App) error {
				scope := a.Scope
				if scopeName != "" {
					s, err := analytics.ParseScope(scopeName)
					if err != nil {
						return err
					}
					scope = s
				}

				stats := a.Analytics(scope)
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}

				fmt.Fprintf(out, "Scope:         %s\n", scope)
				fmt.Fprintf(out, "Tasks:         %d\n", stats.TotalTasks)
				fmt.Fprintf(out, "Completed:     %d\n", stats.CompletedTasks)
				fmt.Fprintf(out, "In progress:   %d\n", stats.InProgressTasks)
				fmt.Fprintf(out, "Pending:       %d\n", stats.PendingTasks)
				fmt.Fprintf(out, "Time spent:    %s\n", timer.FormatMinutes(stats.TotalTimeSpent))
				fmt.Fprintf(out, "Avg per task:  %s\n", timer.FormatMinutes(stats.AverageCompletionTime))
				fmt.Fprintf(out, "Productivity:  %d%%\n", stats.ProductivityPercentage)
				return nil
			}, app.Shared())
		},
	}

	cmd.Flags().StringVar(&scopeName, "scope", "", "all or today (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
