package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/app"
)

// cli holds the state shared by all subcommands.
type cli struct {
	opts app.Options
	app  *app.Application
}

// execute runs the command line in args and releases the application
// afterwards, whether or not the command succeeded.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defer c.close()
	return root.ExecuteContext(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hookbus",
		Short: "Action and filter hooks driven by Lua scripts",
		Long: `hookbus loads Lua scripts that register action and filter handlers,
then dispatches hooks against them from the command line.

Scripts come from the configuration file, an HCL manifest, or --script.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.open,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.opts.ConfigPath, "config", "c", "", "path to configuration file (TOML or YAML)")
	flags.StringVarP(&c.opts.ManifestPath, "manifest", "m", "", "path to HCL manifest")
	flags.StringArrayVarP(&c.opts.Scripts, "script", "s", nil, "Lua script to load (repeatable)")
	flags.StringVar(&c.opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.opts.LogFormat, "log-format", "", "log format (text, json)")

	cmd.AddCommand(
		c.runCmd(),
		c.filterCmd(),
		c.listCmd(),
		c.watchCmd(),
		versionCmd(),
	)
	return cmd
}

// open builds the application before any subcommand runs.
func (c *cli) open(cmd *cobra.Command, _ []string) error {
	c.opts.LogOutput = cmd.ErrOrStderr()

	a, err := app.New(cmd.Context(), c.opts)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}
