package cli

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josh/trakt-data/internal/cache"
	"github.com/josh/trakt-data/internal/export"
	"github.com/josh/trakt-data/internal/media"
	"github.com/josh/trakt-data/internal/metrics"
	"github.com/josh/trakt-data/internal/trakt"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(pruneCacheCmd)
	rootCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(fixMtimesCmd)

	exportCmd.Flags().String("client-id", "", "Trakt application client id")
	exportCmd.Flags().String("access-token", "", "Trakt user access token")
	exportCmd.Flags().String("output-dir", "", "Directory the JSON tree is written to")
	exportCmd.Flags().StringSlice("exclude", nil, "Paths to exclude from export")

	metricsCmd.Flags().String("client-id", "", "Trakt application client id")
	metricsCmd.Flags().String("access-token", "", "Trakt user access token")
	metricsCmd.Flags().String("output-dir", "", "Directory holding the exported JSON tree")
	metricsCmd.Flags().String("cache-dir", cache.DefaultDir(), "Media cache directory")
	metricsCmd.Flags().String("min-age", "1d", "Never expire cache files younger than this (e.g. 7d)")
	metricsCmd.Flags().String("limit", "1%", "Max cache files to expire, absolute or percentage")

	pruneCacheCmd.Flags().String("cache-dir", cache.DefaultDir(), "Media cache directory")
	pruneCacheCmd.Flags().String("min-age", "1d", "Never prune files younger than this (e.g. 7d)")
	pruneCacheCmd.Flags().String("limit", "1%", "Max files to prune, absolute or percentage")
	pruneCacheCmd.Flags().Bool("dry-run", false, "Log what would be pruned without deleting")

	cacheStatsCmd.Flags().String("cache-dir", cache.DefaultDir(), "Media cache directory")

	fixMtimesCmd.Flags().String("cache-dir", cache.DefaultDir(), "Media cache directory")
	fixMtimesCmd.Flags().Bool("dry-run", false, "Log what would be fixed without touching files")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Sync the user's Trakt state to the output directory",
	RunE:  handleExport,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Render the exported data as a Prometheus textfile",
	RunE:  handleMetrics,
}

var pruneCacheCmd = &cobra.Command{
	Use:   "prune-cache",
	Short: "Delete a bounded random sample of old media cache files",
	RunE:  handlePruneCache,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Print media cache age statistics",
	RunE:  handleCacheStats,
}

var fixMtimesCmd = &cobra.Command{
	Use:   "fix-mtimes",
	Short: "Re-stamp media cache files with their embedded updated_at",
	RunE:  handleFixMtimes,
}

// resolve returns a string setting, preferring an explicitly set flag over
// the bound environment variable.
func resolve(cmd *cobra.Command, name string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return viper.GetString(name)
}

// newClient builds an authenticated API client from the resolved
// credentials. Both values are required; there is no anonymous access to
// per-user endpoints.
func newClient(cmd *cobra.Command, logger *slog.Logger) (*trakt.Client, error) {
	clientID := resolve(cmd, "client-id")
	accessToken := resolve(cmd, "access-token")
	if clientID == "" {
		return nil, fmt.Errorf("missing Trakt client id (--client-id or TRAKT_CLIENT_ID)")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("missing Trakt access token (--access-token or TRAKT_ACCESS_TOKEN)")
	}
	transport := trakt.NewHTTPTransport(clientID, accessToken, logger)
	return trakt.NewClient(transport, logger), nil
}

func requireOutputDir(cmd *cobra.Command) (string, error) {
	outputDir := resolve(cmd, "output-dir")
	if outputDir == "" {
		return "", fmt.Errorf("missing output directory (--output-dir or OUTPUT_DIR)")
	}
	return outputDir, nil
}

func handleExport(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	client, err := newClient(cmd, logger)
	if err != nil {
		return err
	}
	outputDir, err := requireOutputDir(cmd)
	if err != nil {
		return err
	}

	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	if !cmd.Flags().Changed("exclude") {
		exclude = viper.GetStringSlice("exclude")
	}
	exporter := export.NewExporter(client, outputDir, exclude, logger)
	return exporter.Run()
}

func handleMetrics(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	minAge, err := parseMinAge(resolve(cmd, "min-age"))
	if err != nil {
		return err
	}
	limit, err := cache.ParseLimit(resolve(cmd, "limit"))
	if err != nil {
		return err
	}

	client, err := newClient(cmd, logger)
	if err != nil {
		return err
	}
	outputDir, err := requireOutputDir(cmd)
	if err != nil {
		return err
	}
	cacheDir, _ := cmd.Flags().GetString("cache-dir")

	// Force a bounded, age-weighted sample of media cache entries to miss
	// this run so the cache slowly re-validates itself.
	candidates, err := cache.ScanCandidates(cacheDir, minAge, time.Now(), logger)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	expired := cache.SelectExpired(candidates, limit, rng)
	logger.Debug("expired cache entries this run", "count", len(expired))

	store := media.NewStore(client, cacheDir, expired, logger)
	generator := metrics.NewGenerator(store, outputDir, logger)
	return generator.Generate()
}

func handlePruneCache(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	minAge, err := parseMinAge(resolve(cmd, "min-age"))
	if err != nil {
		return err
	}
	limit, err := cache.ParseLimit(resolve(cmd, "limit"))
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return cache.Prune(cacheDir, minAge, limit, dryRun, rng, logger)
}

func handleCacheStats(cmd *cobra.Command, args []string) error {
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	stats, err := cache.Stats(cacheDir, time.Now())
	if err != nil {
		return err
	}
	if stats == nil {
		cmd.Println("Cache is empty")
		return nil
	}

	cmd.Printf("mean age: %s\n", stats.Mean.Round(time.Second))
	cmd.Printf("median age: %s\n", stats.Median.Round(time.Second))
	cmd.Printf("75th percentile age: %s\n", stats.P75.Round(time.Second))
	cmd.Printf("95th percentile age: %s\n", stats.P95.Round(time.Second))
	cmd.Printf("99th percentile age: %s\n", stats.P99.Round(time.Second))
	cmd.Printf("min age: %s\n", stats.Min.Round(time.Second))
	cmd.Printf("max age: %s\n", stats.Max.Round(time.Second))
	cmd.Printf("total files: %d\n", stats.Total)
	return nil
}

func handleFixMtimes(cmd *cobra.Command, args []string) error {
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return cache.FixMtimes(cacheDir, dryRun, slog.Default())
}

// parseMinAge parses an age like "7d". Empty and "0" mean no minimum.
func parseMinAge(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid min age: %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid min age: %q", value)
}
