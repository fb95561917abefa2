// Command geobucketctl runs maintenance and diagnostic operations against the
// configured store without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/geo-bucket/app/bootstrap"
	"github.com/geo-bucket/app/config"
)

var (
	configPath string
	output     string
	app        *bootstrap.App
)

var rootCmd = &cobra.Command{
	Use:   "geobucketctl",
	Short: "Geo-bucket maintenance tool",
	Long:  "Seeds sample data, rebuilds indexes and inspects bucket resolution against the configured MongoDB, Redis and Meilisearch backends.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "json" && output != "yaml" {
			return fmt.Errorf("unsupported output %q, want json or yaml", output)
		}

		var paths []string
		if configPath != "" {
			paths = append(paths, configPath)
		}
		cfg, err := config.Load(paths...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		if cfg.Mongo.URL == "" {
			logger.Warn("mongo.url is empty, changes are lost when the command exits")
		}

		a, err := bootstrap.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("init services: %w", err)
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app == nil {
			return
		}
		app.Close(context.Background())
		_ = app.Logger.Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory holding app.yaml")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	rootCmd.AddCommand(seedCmd, indexCmd, statsCmd, resolveCmd, normalizeCmd, similarCmd, deleteCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if app != nil {
			app.Logger.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

// render writes v to w in the selected output format.
func render(w io.Writer, v interface{}) error {
	if output == "yaml" {
		// Round-trip through JSON so the yaml keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
