// Package cli implements the trakt-data command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trakt-data",
	Short: "Mirror your Trakt.tv account to a local JSON tree",
	Long: `trakt-data incrementally exports the authenticated user's Trakt.tv
state (collection, history, ratings, lists, progress) to a directory of
JSON files, refetching only resources whose server-side activity moved
since the previous run, and renders the result as Prometheus metrics.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogger(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Credentials and paths come from the environment when not passed as
	// flags; flags win.
	viper.BindEnv("client-id", "TRAKT_CLIENT_ID")
	viper.BindEnv("access-token", "TRAKT_ACCESS_TOKEN")
	viper.BindEnv("output-dir", "OUTPUT_DIR")
	viper.BindEnv("exclude", "TRAKT_DATA_EXCLUDE")
	viper.BindEnv("min-age", "TRAKT_DATA_CACHE_MIN_AGE")
	viper.BindEnv("limit", "TRAKT_DATA_CACHE_LIMIT")

	viper.SetDefault("min-age", "1d")
	viper.SetDefault("limit", "1%")
}
