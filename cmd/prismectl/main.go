// Command prismectl inspects the themes catalog and runs report generations
// from the shell, either in-process or against a running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orsg/prisme/internal/catalog"
	"github.com/orsg/prisme/internal/config"
	"github.com/orsg/prisme/internal/pkg/logger"
)

var (
	configPath string
	serverURL  string
	verbose    bool

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prismectl",
	Short: "PRISME report catalog and generation tool",
	Long: `prismectl reads the same configuration as the report server.

Without --server, commands run locally: the themes document is read from
disk and the report engine is spawned in-process. With --server, they are
sent to a running server instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger.SetLevel(logger.DEBUG)
		} else {
			logger.SetLevel(logger.WARN)
		}
		c, err := config.LoadFromEnv(configPath)
		if errors.Is(err, os.ErrNotExist) {
			c = config.Default()
			config.ApplyEnv(c)
			err = nil
		}
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = c
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("PRISME_CONFIG", "config/config.yaml"), "Server configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", os.Getenv("PRISME_SERVER"), "Base URL of a running server (e.g. http://localhost:3001)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(checkCSVCmd)
	rootCmd.AddCommand(yearsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(reloadCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadCatalog reads the themes document once. A broken document is an error
// here, unlike in the server.
func loadCatalog() (*catalog.Catalog, error) {
	c := catalog.Load(cfg.Paths.ThemesConfig, 1)
	if err := c.LoadError(); err != nil {
		return nil, err
	}
	return c, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
