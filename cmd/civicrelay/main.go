package main

import (
	"fmt"
	"os"

	"civicrelay/pkg/config"
	"civicrelay/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var version = "0.1.0"

var (
	configFile string
	verbose    bool

	clusterEndpoint string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicrelay",
		Short: "Document relay and node fleet bridge for the civic storage cluster",
		Long: `civicrelay sits between the governance dashboard and the storage cluster.
It streams project documents into the cluster, serves them back, keeps
project records, and lets operators manage the cluster's storage nodes.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&clusterEndpoint, "cluster", "", "storage cluster gRPC endpoint (overrides config)")

	rootCmd.AddCommand(
		serveCmd(),
		devclusterCmd(),
		fleetCmd(),
		tokenCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file (or environment) and then the global
// flags over the defaults.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadConfig(configFile)
		if err == nil {
			err = cfg.ApplyEnv()
		}
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if clusterEndpoint != "" {
		cfg.Cluster.Endpoint = clusterEndpoint
	}
	return cfg, nil
}

func setupLogger(verbose bool, lc config.LogConfig) *zap.Logger {
	cfg := zap.NewProductionConfig()
	level := zapcore.InfoLevel
	if lc.Level != "" {
		if parsed, err := zapcore.ParseLevel(lc.Level); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var opts []zap.Option
	if lc.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   lc.Compress,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotated, cfg.Level)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger, err := cfg.Build(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("civicrelay v%s\n", version)
		},
	}
}

func formatBytes(n int64) string {
	return utils.FormatDataSize(n)
}
