package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <action> [args...]",
		Short: "Reload scripts on change and re-fire an action",
		Long: `Dispatch an action, then watch every loaded script. When a script
changes it is reloaded and the action fires again. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, values := args[0], parseValues(args[1:])
			logger := c.app.Logger()

			fire := func(ctx context.Context) {
				if err := c.app.DoAction(ctx, name, values...); err != nil {
					logger.Error("action failed", slog.String("hook", name), slog.Any("error", err))
				}
			}

			if !skipInitial {
				fire(cmd.Context())
			}

			return c.app.Watch(cmd.Context(), func(ctx context.Context, path string, err error) {
				if err != nil {
					return
				}
				fire(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "do not fire the action before watching")
	return cmd
}
