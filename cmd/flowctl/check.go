package main

import (
	"errors"
	"fmt"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/validate"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("some connections were rejected")

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <graph.json>",
		Short: "Replay every edge of a graph through connection validation",
		Long: "Edges are proposed in file order against the edges accepted so far, " +
			"the way an editor would have built the graph.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(args[0])
			if err != nil {
				return err
			}
			v := validate.New(validate.WithRegistry(opts.registry(cmd)))
			graph := &flow.Graph{Nodes: g.Nodes}

			out := cmd.OutOrStdout()
			rejected := 0
			for _, e := range g.Edges {
				conn := flow.Connection{Source: e.Source, Target: e.Target, SourceHandle: e.SourceHandle, TargetHandle: e.TargetHandle}
				res, err := v.ValidateConnection(conn, graph.Node(e.Source), graph.Node(e.Target), graph.Edges)
				if err != nil {
					fmt.Fprintf(out, "edge %s: %v\n", e.ID, err)
					rejected++
					continue
				}
				if !res.Allowed {
					fmt.Fprintf(out, "edge %s: %s\n", e.ID, res.Reason)
					rejected++
					continue
				}
				graph.Edges = append(graph.Edges, e)
			}
			fmt.Fprintf(out, "%d edge(s) checked, %d rejected\n", len(g.Edges), rejected)
			if rejected > 0 {
				return errRejected
			}
			return nil
		},
	}
}
