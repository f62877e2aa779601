package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMatrixCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Print the handle compatibility matrix as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), opts.registry(cmd).Markdown())
			return err
		},
	}
}
