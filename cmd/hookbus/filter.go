package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) filterCmd() *cobra.Command {
	var (
		selectPath string
		compact    bool
	)

	cmd := &cobra.Command{
		Use:   "filter <name> <value> [args...]",
		Short: "Apply filters to a value and print the result",
		Long: `Run a value through every filter registered for name and print the
result as JSON.

The value and any extra arguments are decoded as JSON when they parse,
otherwise they are passed as strings. Use --select with a path such as
"items.0.title" to print part of the result.`,
		Example: `  hookbus filter -s title.lua the_title '"Hello"'
  hookbus filter -s post.lua post '{"title":"Hi","tags":["go"]}' --select tags`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.app.ApplyFilters(cmd.Context(), args[0], parseValue(args[1]), parseValues(args[2:])...)
			if err != nil {
				return err
			}

			data, err := encodeValue(out, selectPath, compact)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&selectPath, "select", "", "print only the part of the result at this path")
	cmd.Flags().BoolVar(&compact, "compact", false, "print compact JSON")
	return cmd
}
