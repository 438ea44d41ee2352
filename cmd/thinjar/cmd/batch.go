package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/thinjar"
	"github.com/aweris/thinjar/internal/logging"
)

var batchCmd = &cobra.Command{
	Use:   "batch <fat.jar>...",
	Short: "Thin many jars into one shared directory cache",
	Long: `Thin every given fat jar concurrently. Thin jars are written to --out
under their original file names, and all libraries land in the directory
cache, where jars sharing a library store it once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("out", "", "directory for the thin jars")
	batchCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	defer logging.OperationStart(logger, cmd.Name())()

	out, _ := cmd.Flags().GetString("out")

	jobs := make([]thinjar.Job, 0, len(args))
	for _, source := range args {
		jobs = append(jobs, thinjar.Job{
			Source: source,
			Target: filepath.Join(out, filepath.Base(source)),
		})
	}

	results, err := thinjar.ThinAll(cmd.Context(), getCacheDir(), jobs, viper.GetInt("concurrency"), runOptions(cmd, true)...)
	for i, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d libraries (%d new)\n", jobs[i].Target, res.Libraries(), res.Stored)
	}
	if err != nil {
		var failed int
		for _, res := range results {
			if res == nil {
				failed++
			}
		}
		return errors.Join(fmt.Errorf("%d of %d jobs failed", failed, len(jobs)), err)
	}
	return nil
}
