// Package cli implements hearthctl, the operator client for the hearth HTTP API.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/hearth/internal/adapter/redis"
)

type options struct {
	server     string
	adminToken string
	timeout    time.Duration
	now        func() time.Time
}

func (o *options) client() *Client {
	return NewClient(o.server, o.adminToken, nil)
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// RootCmd returns the hearthctl command tree.
func RootCmd(version string) *cobra.Command {
	opts := &options{now: time.Now}

	root := &cobra.Command{
		Use:     "hearthctl",
		Short:   "Inspect and operate a hearth server",
		Version: version,
		Long: `hearthctl talks to a running hearth server over its HTTP API.

Examples:
  hearthctl status
  hearthctl contribute u-42 "Ada"
  hearthctl protect u-42 "Ada" 2h
  hearthctl --admin-token $ADMIN_TOKEN grant u-42 3`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("HEARTH_SERVER", "http://localhost:8080"), "hearth server base URL (or HEARTH_SERVER)")
	root.PersistentFlags().StringVar(&opts.adminToken, "admin-token", os.Getenv("ADMIN_TOKEN"), "bearer token for admin commands (or ADMIN_TOKEN)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(statusCmd(opts))
	root.AddCommand(multiplierCmd(opts))
	root.AddCommand(contributeCmd(opts))
	root.AddCommand(protectCmd(opts))
	root.AddCommand(seasonResetCmd(opts))
	root.AddCommand(grantCmd(opts))
	root.AddCommand(watchCmd(opts))

	return root
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current hearth status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			view, err := opts.client().Status(ctx)
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), view, opts.now())
			return nil
		},
	}
}

func multiplierCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "multiplier",
		Short: "Print the reward multiplier for the current band",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			m, err := opts.client().Multiplier(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", m)
			return nil
		},
	}
}

func contributeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <contributor-id> [label]",
		Short: "Add one contribution on behalf of a contributor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			result, err := opts.client().Contribute(ctx, args[0], argOr(args, 1, args[0]))
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func protectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "protect <contributor-id> <label> <duration>",
		Short: "Open or extend the protection window (duration like 2h or 90m)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[2], err)
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			result, err := opts.client().Protect(ctx, args[0], args[1], duration)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func seasonResetCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "season-reset",
		Short: "Relight the hearth for a new season (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("season reset clears all contributions and counters; pass --yes to confirm")
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			view, err := opts.client().ResetSeason(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okColor.Sprint("✓ Season reset"))
			renderStatus(cmd.OutOrStdout(), view, opts.now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func grantCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <contributor-id> <units>",
		Short: "Add units to a contributor's inventory (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || units <= 0 {
				return fmt.Errorf("units must be a positive integer, got %q", args[1])
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			balance, err := opts.client().Grant(ctx, args[0], units)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s now has %d units\n", okColor.Sprint("✓"), args[0], balance)
			return nil
		},
	}
}

func watchCmd(opts *options) *cobra.Command {
	var redisURL, pool string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow status updates published on Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if redisURL == "" {
				return fmt.Errorf("--redis-url (or REDIS_URL) is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			connectCtx, cancel := opts.context(cmd)
			rdb, err := redis.NewClient(connectCtx, redisURL)
			cancel()
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching pool %q, Ctrl-C to stop\n", pool)
			for view := range redis.NewStatusPublisher(rdb, pool).Subscribe(ctx) {
				fmt.Fprintln(out, labelColor.Sprint(opts.now().Format(time.TimeOnly)))
				renderStatus(out, view, opts.now())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL (or REDIS_URL)")
	cmd.Flags().StringVar(&pool, "pool", envOr("HEARTH_POOL", "default"), "hearth pool name (or HEARTH_POOL)")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}
