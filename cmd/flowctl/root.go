package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/handle"
	"github.com/spf13/cobra"
)

type options struct {
	strict   bool
	logLevel string
	dbPath   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Inspect flow graphs, handle rules and versions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.strict, "strict", false, "Reject unknown handle kinds instead of degrading them")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to a sqlite flow database (default $FLOW_SQLITE_PATH)")

	root.AddCommand(
		newMatrixCmd(opts),
		newDiffCmd(opts),
		newCheckCmd(opts),
		newVersionsCmd(opts),
	)
	return root
}

func (o *options) registry(cmd *cobra.Command) *handle.Registry {
	logger := config.NewLogger(o.logLevel, "text", cmd.ErrOrStderr())
	regOpts := []handle.Option{handle.WithLogger(logger)}
	if o.strict {
		regOpts = append(regOpts, handle.WithStrictKinds())
	}
	return handle.NewRegistry(regOpts...)
}

// graphFile is the on-disk form of a graph: the editor's nodes and edges.
type graphFile struct {
	Nodes []flow.Node `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

func readGraph(path string) (*graphFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g graphFile
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &g, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
