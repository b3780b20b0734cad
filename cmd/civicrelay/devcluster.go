package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicrelay/pkg/config"
	"civicrelay/pkg/devcluster"
	"civicrelay/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func devclusterCmd() *cobra.Command {
	var (
		address     string
		nodes       int
		chunkSize   string
		capacity    string
		settleDelay time.Duration
		users       int64
	)

	cmd := &cobra.Command{
		Use:   "devcluster",
		Short: "Run an in-memory storage cluster for development",
		Long: `Start a CivicCloudService that keeps every chunk in memory. Chunks are
placed round-robin over online nodes; starting or stopping a node passes
through Processing for the settle delay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose, config.Default().Log)
			defer logger.Sync()

			chunk, err := utils.ParseDataSize(chunkSize)
			if err != nil {
				return fmt.Errorf("--chunk-size: %w", err)
			}
			nodeCapacity, err := utils.ParseDataSize(capacity)
			if err != nil {
				return fmt.Errorf("--capacity: %w", err)
			}

			cluster := devcluster.New(devcluster.Options{
				Nodes:        nodes,
				ChunkSize:    chunk,
				NodeCapacity: nodeCapacity,
				SettleDelay:  settleDelay,
				Users:        users,
			}, logger)
			defer cluster.Close()

			lis, err := net.Listen("tcp", address)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", address, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting development cluster",
				zap.Int("nodes", nodes),
				zap.String("chunk_size", utils.FormatDataSize(chunk)))
			return cluster.Serve(ctx, lis, int(config.Default().Cluster.MaxMessageSize))
		},
	}

	defaults := devcluster.DefaultOptions()
	cmd.Flags().StringVar(&address, "address", "127.0.0.1:9002", "gRPC listening address")
	cmd.Flags().IntVar(&nodes, "nodes", defaults.Nodes, "number of nodes online at start")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "2MiB", "size of chunks placed on nodes")
	cmd.Flags().StringVar(&capacity, "capacity", "1GiB", "reported capacity per node")
	cmd.Flags().DurationVar(&settleDelay, "settle-delay", defaults.SettleDelay, "how long a toggled node reports Processing")
	cmd.Flags().Int64Var(&users, "users", 0, "registered user count to report in stats")

	return cmd
}
