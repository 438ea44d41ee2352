package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/thinjar"
	"github.com/aweris/thinjar/internal/logging"
)

var thinCmd = &cobra.Command{
	Use:   "thin <fat.jar> <thin.jar>",
	Short: "Split a fat jar into a thin jar and cached libraries",
	Long: `Copy every application entry of a Spring Boot fat jar into a thin jar,
move its nested libraries into the library cache under their SHA-256 address,
and record them in META-INF/spring.lib.index.`,
	Args: cobra.ExactArgs(2),
	RunE: runThin,
}

func init() {
	thinCmd.Flags().String("cache", "", "library cache path (directory or archive, see --cache-mode)")
	rootCmd.AddCommand(thinCmd)
}

func runThin(cmd *cobra.Command, args []string) error {
	defer logging.OperationStart(logger, cmd.Name())()

	source, target := args[0], args[1]

	dir, err := cacheMode()
	if err != nil {
		return err
	}
	explicit, _ := cmd.Flags().GetString("cache")
	cache := cacheFor(explicit, target, dir)

	res, err := thinjar.Thin(cmd.Context(), source, target, cache, runOptions(cmd, dir)...)
	if err != nil {
		return fmt.Errorf("thin failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d libraries (%d new), %d entries kept, %d excluded\n",
		target, res.Libraries(), res.Stored, res.PassThrough, res.Excluded)
	return nil
}
