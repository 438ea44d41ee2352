package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/thinjar"
	"github.com/aweris/thinjar/internal/logging"
	"github.com/aweris/thinjar/internal/remote"
)

var pushCmd = &cobra.Command{
	Use:   "push <ref>",
	Short: "Push the library cache to a registry",
	Long:  "Publish every library in the cache as an OCI image at <ref>.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	pushCmd.Flags().String("cache", "", "library cache path (directory or archive, see --cache-mode)")
	addRemoteFlags(pushCmd)
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) (err error) {
	ref := args[0]

	dir, err := cacheMode()
	if err != nil {
		return err
	}
	cache, _ := cmd.Flags().GetString("cache")
	if cache == "" {
		if !dir {
			return fmt.Errorf("--cache is required with cache mode %q", thinjar.CacheModeArchive)
		}
		cache = getCacheDir()
	}

	src, err := thinjar.OpenCache(cache, dir)
	if err != nil {
		return err
	}
	defer src.Close()

	r, err := newRemote(cmd, ref)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pushing %s...\n", r)

	res, err := r.Push(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. %d libraries in %d layers, digest %s\n", res.Libraries, res.Layers, res.Digest)
	return nil
}

func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "registry username (default: docker credentials)")
	cmd.Flags().String("password", "", "registry password")
	cmd.Flags().Bool("insecure", false, "allow plain HTTP registries")
}

func newRemote(cmd *cobra.Command, ref string) (*remote.OCIRemote, error) {
	opts := []remote.Option{
		remote.WithConcurrency(viper.GetInt("concurrency")),
		remote.WithLogger(logging.Component(logger, cmd.Name())),
	}

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" {
		username = os.Getenv("THINJAR_REGISTRY_USERNAME")
		password = os.Getenv("THINJAR_REGISTRY_PASSWORD")
	}
	if username != "" {
		opts = append(opts, remote.WithAuth(remote.StaticAuthenticator{Username: username, Password: password}))
	} else {
		opts = append(opts, remote.WithAuth(remote.NewKeychainAuthenticator()))
	}

	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		opts = append(opts, remote.WithInsecure())
	}
	return remote.NewOCIRemote(ref, opts...)
}
