package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/reactome/release-qa-sub001/domain/pairs"
)

type pairView struct {
	A          string `json:"a"`
	B          string `json:"b"`
	ValueClass string `json:"valueClass"`
}

func newPairsCommand(opts *rootOptions) *cobra.Command {
	var (
		skip   []string
		noSkip bool
	)

	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "List the attribute pairs the collision check compares",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			env, err := openEnvironment(cmd.Context(), cfg, opts.logger(), false)
			if err != nil {
				return err
			}
			defer env.Close()

			skipList := pairs.DefaultSkip
			if noSkip {
				skipList = nil
			}
			skipList = append(append([]string(nil), skipList...), skip...)

			found := pairs.NewEnumerator(env.model, skipList).Enumerate()
			views := make([]pairView, len(found))
			for i, p := range found {
				views[i] = pairView{A: p.A.Key(), B: p.B.Key(), ValueClass: p.ValueClass}
			}

			out := cmd.OutOrStdout()
			switch opts.output {
			case OutputJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			case OutputTable, "":
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}

			table := tablewriter.NewWriter(out)
			table.Header("#", "Attribute A", "Attribute B", "Value class")
			for i, v := range views {
				if err := table.Append(strconv.Itoa(i+1), v.A, v.B, v.ValueClass); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, newStyles(opts.noColor).muted.Render(fmt.Sprintf("%d pairs", len(views))))
			return err
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "additional attribute names to skip")
	cmd.Flags().BoolVar(&noSkip, "no-default-skip", false, "do not apply the default skip list")
	return cmd
}
