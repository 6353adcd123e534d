package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"prairie_track/internal/scheduler"
	"prairie_track/internal/tracker"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0021B", Dark: "#F25D94"})
	freshStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"})
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "tracker",
		Short:        "Track open PrairieLearn assessments across courses",
		Long:         "tracker caches the open assessments of every course on your PrairieLearn dashboard and lists them by due date.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	root.AddCommand(
		newListCmd(opts),
		newReloadCmd(opts),
		newCheckCmd(opts),
		newWatchCmd(opts),
		newClearCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// withApp wires the app for one command run and tears it down afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, showReload bool, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), opts.configPath, cmd.OutOrStdout(), cmd.ErrOrStderr(), showReload)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Warn("failed to close resources", "error", err)
		}
	}()
	return fn(a)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached assessments, refreshing stale data first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, !offline, func(a *app) error {
				if offline {
					return a.tracker.Present(cmd.Context())
				}
				_, err := a.tracker.OnLoad(cmd.Context(), time.Now())
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "show the cache without checking staleness")
	return cmd
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Refetch every course and redraw the listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(a *app) error {
				_, err := a.tracker.Reload(cmd.Context())
				return err
			})
		},
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show the age and staleness of every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(a *app) error {
				now := time.Now()
				statuses, err := a.tracker.Check(cmd.Context(), now)
				if err != nil {
					return err
				}
				printStatuses(cmd.OutOrStdout(), statuses, now)
				return nil
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check staleness on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(a *app) error {
				if interval <= 0 {
					interval = a.cfg.Watch.Interval
				}
				sched := scheduler.NewScheduler(a.tracker, interval, a.logger)
				if err := sched.Start(cmd.Context()); err != nil && cmd.Context().Err() == nil {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "check interval (default from config)")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(a *app) error {
				if err := a.store.ClearAll(cmd.Context()); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			})
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cache schema in the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(a *app) error {
				if err := a.migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s).\n", a.cfg.Store.Driver)
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracker %s (commit: %s)\n", version, commit)
		},
	}
}

func printStatuses(w io.Writer, statuses []tracker.KeyStatus, now time.Time) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No cache entries.")
		return
	}
	for _, st := range statuses {
		verdict := freshStyle.Render("fresh")
		if st.Stale {
			verdict = staleStyle.Render("stale")
		}
		age := "unknown"
		if st.Err != nil {
			age = "unreadable"
		} else if !st.CapturedAt.IsZero() {
			age = formatAge(now.Sub(st.CapturedAt))
		}
		fmt.Fprintf(w, "%-12s %-10s %s\n", st.ID, age, verdict)
	}
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
