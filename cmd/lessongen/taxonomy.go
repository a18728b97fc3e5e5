package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

func newTaxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "List program categories and subcategories with topic counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			idx := taxonomy.Load(cfg.Taxonomy.Path)

			type key struct{ category, subcategory string }
			counts := make(map[key]int)
			for _, n := range idx.AllNodes() {
				counts[key{n.Category, n.Subcategory}]++
			}

			out := cmd.OutOrStdout()
			for _, c := range idx.Categories() {
				fmt.Fprintln(out, c)
				for _, s := range idx.Subcategories(c) {
					sem, _ := idx.Semester(c, s)
					fmt.Fprintf(out, "  %-45s S%d  %3d topics\n", s, sem, counts[key{c, s}])
				}
			}
			fmt.Fprintf(out, "%d topics in %d categories\n", idx.Len(), len(idx.Categories()))
			return nil
		},
	}
}
