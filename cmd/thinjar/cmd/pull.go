package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/thinjar/internal/store"
)

var pullCmd = &cobra.Command{
	Use:   "pull <ref>",
	Short: "Pull a library cache from a registry",
	Long:  "Download the libraries published at <ref> into the directory cache.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	addRemoteFlags(pullCmd)
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) (err error) {
	ref := args[0]

	dst, err := store.NewDirStore(getCacheDir())
	if err != nil {
		return err
	}

	r, err := newRemote(cmd, ref)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pulling %s...\n", r)

	res, err := r.Pull(cmd.Context(), dst)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. %d libraries from %d layers, %d new\n", res.Libraries, res.Layers, res.Stored)
	return nil
}
