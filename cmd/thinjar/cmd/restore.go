package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/thinjar"
	"github.com/aweris/thinjar/internal/logging"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <thin.jar> <fat.jar>",
	Short: "Rebuild a fat jar from a thin jar and the library cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().String("cache", "", "library cache path (directory or archive, see --cache-mode)")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	defer logging.OperationStart(logger, cmd.Name())()

	thin, target := args[0], args[1]

	dir, err := cacheMode()
	if err != nil {
		return err
	}
	explicit, _ := cmd.Flags().GetString("cache")
	cache := cacheFor(explicit, thin, dir)

	res, err := thinjar.Restore(cmd.Context(), thin, cache, target, runOptions(cmd, dir)...)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d libraries restored, %d entries copied\n",
		target, res.Libraries, res.PassThrough)
	return nil
}
