package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/ui"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	dataDir    string
	theme      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "dhyan",
		Short:         "A focused daily task tracker for the terminal",
		Long:          "dhyan keeps today's tasks, times the one you are working on and starts fresh every morning.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(g)
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dhyan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "directory holding the database, lock and log")
	rootCmd.PersistentFlags().StringVar(&g.theme, "theme", "", "color theme (nord, dracula)")

	rootCmd.AddCommand(
		addCmd(g),
		listCmd(g),
		startCmd(g),
		completeCmd(g),
		deleteCmd(g),
		editCmd(g),
		moveCmd(g),
		statsCmd(g),
		watchCmd(g),
		infoCmd(g),
		versionCmd(),
	)

	return rootCmd
}

// config loads the configuration and applies command line overrides
func (g *globalFlags) config() (*app.Config, error) {
	cfg, err := app.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
		cfg.DBPath = filepath.Join(g.dataDir, "dhyan.db")
	}
	if g.theme != "" {
		cfg.Theme = g.theme
	}
	return cfg, nil
}

// open starts the application. Read-only commands pass app.Shared so they
// work while the TUI holds the lock.
func (g *globalFlags) open(opts ...app.Option) (*app.App, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts...)
}

func runTUI(g *globalFlags) error {
	application, err := g.open()
	if err != nil {
		return err
	}
	defer application.Close()

	model := ui.NewRootModel(application)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

func infoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show where dhyan keeps its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app.App) error {
				info, err := a.Info()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Data dir:    %s\n", info.DataDir)
				fmt.Fprintf(out, "Database:    %s\n", info.DBPath)
				fmt.Fprintf(out, "Schema:      %d\n", info.SchemaVersion)
				fmt.Fprintf(out, "Keys:        %s\n", strings.Join(info.Keys, ", "))
				fmt.Fprintf(out, "Last date:   %s\n", info.LastDate)
				fmt.Fprintf(out, "Tasks:       %d\n", info.Tasks)
				if a.DayChanged {
					fmt.Fprintln(out, "Stored tasks are from an earlier day and will be cleared on next start")
				}
				return nil
			}, app.Shared())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dhyan v%s\n", version)
		},
	}
}
