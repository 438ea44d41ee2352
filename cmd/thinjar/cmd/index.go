package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/thinjar"
)

var indexCmd = &cobra.Command{
	Use:   "index <thin.jar>",
	Short: "Print the library index of a thin jar",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	entries, err := thinjar.ReadIndex(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no libraries)")
		return nil
	}
	for _, e := range entries {
		addr, err := e.Address()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Path, addr)
	}
	return nil
}
