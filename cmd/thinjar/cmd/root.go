package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/thinjar"
	"github.com/aweris/thinjar/internal/classify"
	"github.com/aweris/thinjar/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "thinjar",
	Short: "Split Spring Boot archives into thin jars and a shared library cache",
	Long: `thinjar moves the nested libraries of a Spring Boot fat jar into a
content-addressed cache and writes a thin jar that lists them in
META-INF/spring.lib.index.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
}

var logger = zerolog.Nop()

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: $XDG_CONFIG_HOME/thinjar/config.yaml)")
	flags.String("cache-dir", "", "library cache directory (default: $XDG_CACHE_HOME/thinjar/libs)")
	flags.String("cache-mode", thinjar.CacheModeDir, "library cache form: dir or archive")
	flags.StringSlice("exclude-prefix", nil, "library path prefix to drop instead of caching (repeatable)")
	flags.Bool("verify-cache", false, "re-hash libraries already in a directory cache")
	flags.Int("concurrency", thinjar.DefaultConcurrency, "parallel jobs for batch, push and pull")
	flags.CountP("verbose", "v", "increase log verbosity (repeatable)")

	viper.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	viper.BindPFlag("cache_mode", flags.Lookup("cache-mode"))
	viper.BindPFlag("exclude_prefixes", flags.Lookup("exclude-prefix"))
	viper.BindPFlag("verify_cache", flags.Lookup("verify-cache"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("THINJAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("cache_dir", thinjar.DefaultCacheDir())
	viper.SetDefault("cache_mode", thinjar.CacheModeDir)
	viper.SetDefault("exclude_prefixes", classify.DefaultExcludedPrefixes)
	viper.SetDefault("concurrency", thinjar.DefaultConcurrency)

	viper.ReadInConfig()
}

func setupLogger(cmd *cobra.Command, args []string) error {
	color := isatty.IsTerminal(os.Stderr.Fd())
	logger = logging.New(os.Stderr, viper.GetInt("verbose"), color)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug().Str("path", used).Msg("loaded config")
	}
	return nil
}

func configDir() string {
	return filepath.Join(xdg.ConfigHome, "thinjar")
}

func getCacheDir() string {
	return viper.GetString("cache_dir")
}

// cacheFor resolves the cache location for a thin archive. An explicit path
// wins; otherwise a directory cache uses the configured cache dir and an
// archive cache sits next to the thin archive.
func cacheFor(explicit, thin string, dir bool) string {
	if explicit != "" {
		return explicit
	}
	if dir {
		return getCacheDir()
	}
	return strings.TrimSuffix(thin, filepath.Ext(thin)) + "-libs.zip"
}

func cacheMode() (bool, error) {
	return thinjar.ParseCacheMode(viper.GetString("cache_mode"))
}

func runOptions(cmd *cobra.Command, dir bool) []thinjar.Option {
	return []thinjar.Option{
		thinjar.WithDirectoryCache(dir),
		thinjar.WithExcludedPrefixes(viper.GetStringSlice("exclude_prefixes")...),
		thinjar.WithVerifyCache(viper.GetBool("verify_cache")),
		thinjar.WithLogger(logging.Component(logger, cmd.Name())),
	}
}
