package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/sqlite"
	"github.com/spf13/cobra"
)

func newVersionsCmd(opts *options) *cobra.Command {
	var (
		page, pageSize int
		asc            bool
	)
	cmd := &cobra.Command{
		Use:   "versions <app-id>",
		Short: "List the saved versions of an application in a sqlite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.dbPath
			if path == "" {
				path = config.FromEnv().SQLitePath
			}
			s, err := sqlite.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.CreateSchema(cmd.Context()); err != nil {
				return err
			}

			order := flow.Descending
			if asc {
				order = flow.Ascending
			}
			versions, err := s.ListVersions(cmd.Context(), args[0], page, pageSize, order)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no versions for %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNODES\tEDGES\tCREATED")
			for _, v := range versions {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", v.Version, len(v.Snapshot.Nodes), len(v.Snapshot.Edges),
					v.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Versions per page")
	cmd.Flags().BoolVar(&asc, "asc", false, "Oldest first")
	return cmd
}
