package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"civicrelay/pkg/fleet"
	"civicrelay/pkg/gateway"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var jsonOutput bool

func fleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Manage the storage cluster's nodes",
		Long:  `Inspect and control storage nodes directly through the cluster gateway.`,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of tables")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show fleet-wide usage and node states",
			Args:  cobra.NoArgs,
			RunE: withController(func(ctx context.Context, ctl *fleet.Controller, args []string) error {
				stats, err := ctl.GetFleetStats(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(stats)
				}
				renderFleetStats(stats)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add",
			Short: "Start a new node",
			Args:  cobra.NoArgs,
			RunE: withController(func(ctx context.Context, ctl *fleet.Controller, args []string) error {
				result, err := ctl.AddNode(ctx)
				if err != nil {
					return err
				}
				renderResult("add node", result)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "remove <node-id>",
			Short: "Stop and forget a node; its chunks are lost",
			Args:  cobra.ExactArgs(1),
			RunE: withController(func(ctx context.Context, ctl *fleet.Controller, args []string) error {
				result, err := ctl.RemoveNode(ctx, types.NodeID(args[0]))
				if err != nil {
					return err
				}
				renderResult("remove node "+args[0], result)
				return nil
			}),
		},
		toggleCmd(fleet.ActionStart),
		toggleCmd(fleet.ActionStop),
		&cobra.Command{
			Use:   "files <node-id>",
			Short: "List the chunks held by a node",
			Args:  cobra.ExactArgs(1),
			RunE: withController(func(ctx context.Context, ctl *fleet.Controller, args []string) error {
				chunks, err := ctl.InspectNode(ctx, types.NodeID(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]interface{}{"node_id": args[0], "chunks": chunks})
				}
				renderChunks(args[0], chunks)
				return nil
			}),
		},
	)
	return cmd
}

func toggleCmd(action string) *cobra.Command {
	verb := "start"
	if action == fleet.ActionStop {
		verb = "stop"
	}
	return &cobra.Command{
		Use:   verb + " <node-id>",
		Short: fmt.Sprintf("Ask the cluster to %s a node", verb),
		Args:  cobra.ExactArgs(1),
		RunE: withController(func(ctx context.Context, ctl *fleet.Controller, args []string) error {
			result, err := ctl.ToggleNode(ctx, types.NodeID(args[0]), action)
			if err != nil {
				return err
			}
			renderResult(verb+" node "+args[0], result)
			return nil
		}),
	}
}

// withController dials the cluster named by the config and hands a fleet
// controller to fn.
func withController(fn func(ctx context.Context, ctl *fleet.Controller, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := setupLogger(verbose, cfg.Log)
		if !verbose {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Cluster.CallTimeout.Std())
		defer cancel()

		gw, err := gateway.Dial(ctx, gateway.OptionsFromConfig(&cfg.Cluster), logger)
		if err != nil {
			return err
		}
		defer gw.Close()

		ctl := fleet.NewController(gw, metrics.New(prometheus.NewRegistry()), logger)
		return fn(ctx, ctl, args)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
