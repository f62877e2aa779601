package main

import (
	"fmt"

	"github.com/meikuraledutech/flow/diff"
	"github.com/meikuraledutech/flow/session"
	"github.com/spf13/cobra"
)

func newDiffCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		appID  string
	)
	cmd := &cobra.Command{
		Use:   "diff <baseline.json> <live.json>",
		Short: "Show what saving live over baseline would send",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := readGraph(args[0])
			if err != nil {
				return err
			}
			live, err := readGraph(args[1])
			if err != nil {
				return err
			}

			r := diff.Compute(live.Nodes, live.Edges, diff.NewSnapshot(base.Nodes, base.Edges, nil))
			req, _, err := session.BuildRequest(appID, r, live.Edges)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, req)
			}

			out := cmd.OutOrStdout()
			if r.Empty() {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			s := r.Summary()
			fmt.Fprintf(out, "nodes: +%d ~%d -%d\n", s.NodesCreated, s.NodesUpdated, s.NodesDeleted)
			fmt.Fprintf(out, "edges: +%d ~%d -%d\n", s.EdgesCreated, s.EdgesUpdated, s.EdgesDeleted)
			for _, n := range r.Nodes.Created {
				fmt.Fprintf(out, "+ node %s (%s)\n", n.ID, n.Type)
			}
			for _, c := range r.Nodes.Updated {
				fmt.Fprintf(out, "~ node %s %v\n", c.Node.ID, c.Paths())
			}
			for _, id := range r.Nodes.Deleted {
				fmt.Fprintf(out, "- node %s\n", id)
			}
			for _, e := range r.Edges.Created {
				fmt.Fprintf(out, "+ edge %s %s -> %s\n", e.ID, e.Source, e.Target)
			}
			for _, c := range r.Edges.Updated {
				fmt.Fprintf(out, "~ edge %s %v\n", c.Edge.ID, c.Paths())
			}
			for _, id := range r.Edges.Deleted {
				fmt.Fprintf(out, "- edge %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the batch save request instead of a summary")
	cmd.Flags().StringVar(&appID, "app", "", "Application id to put in the request")
	return cmd
}
