package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <action> [args...]",
		Short: "Dispatch an action",
		Long: `Dispatch an action to every handler registered for it.

Each argument is decoded as JSON when it parses, otherwise it is passed
as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := c.app.DoAction(cmd.Context(), name, parseValues(args[1:])...); err != nil {
				return err
			}
			c.app.Logger().Debug("action dispatched",
				slog.String("hook", name),
				slog.Int("fired", c.app.Registry().DidAction(name)))
			return nil
		},
	}
}
