package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/match"

	"github.com/dshills/hookbus/internal/hook"
)

func (c *cli) listCmd() *cobra.Command {
	var (
		kind    string
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered handlers",
		Long: `List registered handlers grouped by namespace, in the order they run.

--match filters hook names with a glob pattern where * matches any run of
characters and ? matches one character.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := []hook.Kind{hook.KindAction, hook.KindFilter}
			if kind != "" {
				k, err := hook.ParseKind(kind)
				if err != nil {
					return err
				}
				kinds = []hook.Kind{k}
			}

			rows := c.collect(kinds, pattern)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no handlers registered")
				return nil
			}
			return writeRows(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list handlers of this kind (action, filter)")
	cmd.Flags().StringVar(&pattern, "match", "", "only list hooks whose name matches this glob")
	return cmd
}

type listRow struct {
	namespace string
	script    string
	info      hook.HandlerInfo
}

// collect gathers handlers sorted by namespace, hook name and kind. Within
// a hook, handlers stay in dispatch order.
func (c *cli) collect(kinds []hook.Kind, pattern string) []listRow {
	owners := make(map[string]string)
	for _, name := range c.app.Scripts().Names() {
		h, ok := c.app.Scripts().Get(name)
		if !ok {
			continue
		}
		for _, id := range h.HandlerIDs() {
			owners[id] = name
		}
	}

	reg := c.app.Registry()
	var rows []listRow
	for _, k := range kinds {
		for _, name := range reg.Names(k) {
			if pattern != "" && !match.Match(name, pattern) {
				continue
			}
			for _, info := range reg.Handlers(k, name) {
				rows = append(rows, listRow{
					namespace: hook.Namespace(name),
					script:    owners[info.ID],
					info:      info,
				})
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.namespace != b.namespace {
			return a.namespace < b.namespace
		}
		if a.info.Hook != b.info.Hook {
			return a.info.Hook < b.info.Hook
		}
		return a.info.Kind < b.info.Kind
	})
	return rows
}

func writeRows(out io.Writer, rows []listRow) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMESPACE\tHOOK\tKIND\tPRIORITY\tID\tSCRIPT\tFLAGS")

	last := ""
	for i, r := range rows {
		ns := r.namespace
		if i > 0 && ns == last {
			ns = ""
		}
		last = r.namespace

		script := r.script
		if script == "" {
			script = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			ns, r.info.Hook, r.info.Kind, r.info.Priority, r.info.ID, script, flags(r.info))
	}
	return tw.Flush()
}

func flags(info hook.HandlerInfo) string {
	var f []string
	if info.Once {
		f = append(f, "once")
	}
	if info.HasReceiver {
		f = append(f, "receiver")
	}
	if len(f) == 0 {
		return "-"
	}
	return strings.Join(f, ",")
}
