package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"civicrelay/pkg/api"
	"civicrelay/pkg/auth"
	"civicrelay/pkg/config"
	"civicrelay/pkg/fleet"
	"civicrelay/pkg/gateway"
	"civicrelay/pkg/metastore"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/relay"
	"civicrelay/pkg/staging"
	"civicrelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var (
		address      string
		stagingDir   string
		storeDir     string
		inMemory     bool
		chunkSize    string
		maxSize      string
		protectAdmin bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Long:  `Serve the project and fleet HTTP API in front of the storage cluster.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.HTTP.Address = address
			}
			if flags.Changed("staging-dir") {
				cfg.Upload.StagingDir = stagingDir
			}
			if flags.Changed("store-dir") {
				cfg.Store.Dir = storeDir
			}
			if flags.Changed("in-memory") {
				cfg.Store.InMemory = inMemory
			}
			if flags.Changed("protect-admin") {
				cfg.Auth.ProtectAdmin = protectAdmin
			}
			if err := sizeFlag(cmd, "chunk-size", chunkSize, &cfg.Upload.ChunkSize); err != nil {
				return err
			}
			if err := sizeFlag(cmd, "max-size", maxSize, &cfg.Upload.MaxSize); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := setupLogger(verbose, cfg.Log)
			defer logger.Sync()
			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := metrics.NewRegistry()
			m := metrics.New(reg)

			gwOpts := gateway.OptionsFromConfig(&cfg.Cluster)
			gwOpts.Registerer = reg
			dialCtx, cancel := context.WithTimeout(ctx, cfg.Cluster.DialTimeout.Std())
			gw, err := gateway.Dial(dialCtx, gwOpts, logger)
			cancel()
			if err != nil {
				return err
			}
			defer gw.Close()

			store, err := metastore.Open(metastore.Options{Dir: cfg.Store.Dir, InMemory: cfg.Store.InMemory}, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			area, err := openStaging(&cfg.Upload, logger)
			if err != nil {
				return err
			}

			tokens, err := auth.NewTokenManager(auth.TokenConfig{
				Secret:    cfg.Auth.Secret,
				AdminUser: cfg.Auth.AdminUser,
				TTL:       cfg.Auth.TokenTTL.Std(),
			})
			if err != nil {
				return err
			}

			if !cfg.Auth.ProtectAdmin {
				logger.Warn("Fleet administration routes are unauthenticated")
			}

			var gatherer prometheus.Gatherer
			if cfg.Metrics.Enabled {
				gatherer = reg
			}

			server := api.NewServer(api.Options{
				ProtectAdmin: cfg.Auth.ProtectAdmin,
				MetricsPath:  cfg.Metrics.Path,
			}, api.Deps{
				Uploads: relay.NewUploadRelay(area, gw, store, relay.UploadOptions{
					ChunkSize: int64(cfg.Upload.ChunkSize),
					MaxSize:   int64(cfg.Upload.MaxSize),
				}, m, logger),
				Documents: relay.NewRetrievalRelay(gw, m, logger),
				Fleet:     fleet.NewController(gw, m, logger),
				Projects:  store,
				Tokens:    tokens,
				Cluster:   gw,
				Metrics:   m,
				Gatherer:  gatherer,
			}, logger)

			logger.Info("Starting relay",
				zap.String("address", cfg.HTTP.Address),
				zap.String("cluster", cfg.Cluster.Endpoint),
				zap.Stringer("chunk_size", cfg.Upload.ChunkSize),
				zap.Stringer("max_size", cfg.Upload.MaxSize))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(gctx, cfg.HTTP.Address, cfg.HTTP.ReadHeaderTimeout.Std(), cfg.HTTP.ShutdownTimeout.Std())
			})
			g.Go(func() error {
				return gw.WatchState(gctx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&address, "address", ":5000", "HTTP listening address")
	cmd.Flags().StringVar(&stagingDir, "staging-dir", "./uploads_temp", "directory for uploads in transit")
	cmd.Flags().StringVar(&storeDir, "store-dir", "./data/metadata", "project metadata directory")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep project metadata in memory only")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "2MiB", "upload chunk size")
	cmd.Flags().StringVar(&maxSize, "max-size", "3000MiB", "maximum upload size")
	cmd.Flags().BoolVar(&protectAdmin, "protect-admin", true, "require the admin identity on fleet routes")

	return cmd
}

// sizeFlag parses raw into dst when the flag was given on the command line.
func sizeFlag(cmd *cobra.Command, name, raw string, dst *utils.ByteSize) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	n, err := utils.ParseDataSize(raw)
	if err != nil {
		return fmt.Errorf("--%s: %w", name, err)
	}
	*dst = utils.ByteSize(n)
	return nil
}

// openStaging prepares the staging directory and removes files left there
// by a relay that died mid-upload. Files younger than StaleAfter are kept.
func openStaging(cfg *config.UploadConfig, logger *zap.Logger) (*staging.Area, error) {
	area, err := staging.New(cfg.StagingDir, logger)
	if err != nil {
		return nil, err
	}
	if n, err := area.Sweep(cfg.StaleAfter.Std()); err != nil {
		logger.Warn("Failed to sweep staging directory", zap.Error(err))
	} else if n > 0 {
		logger.Info("Removed stale staging files", zap.Int("count", n))
	}
	return area, nil
}
