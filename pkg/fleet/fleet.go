// Package fleet exposes storage node administration and aggregates the
// cluster's per-node report into fleet-wide statistics.
package fleet

import (
	"context"
	"fmt"
	"sort"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/protocol"
	"civicrelay/pkg/types"

	"go.uber.org/zap"
)

const (
	ActionStart = "START"
	ActionStop  = "STOP"
)

// Cluster is the subset of the gateway the controller drives.
type Cluster interface {
	AdminStats(ctx context.Context) (*protocol.AdminStatsResponse, error)
	ToggleNode(ctx context.Context, nodeID, action string) (string, error)
	AddNode(ctx context.Context) (string, error)
	RemoveNode(ctx context.Context, nodeID string) (string, error)
	NodeFiles(ctx context.Context, nodeID string) (*protocol.NodeFilesResponse, error)
}

// Controller forwards each call once. It keeps no state between calls.
type Controller struct {
	cluster Cluster
	metrics *metrics.RelayMetrics
	logger  *zap.Logger
}

func NewController(cluster Cluster, m *metrics.RelayMetrics, logger *zap.Logger) *Controller {
	return &Controller{cluster: cluster, metrics: m, logger: logger}
}

// AddNode asks the cluster for a new node. The node shows up in a later poll.
func (c *Controller) AddNode(ctx context.Context) (string, error) {
	result, err := c.cluster.AddNode(ctx)
	err = c.record("add_node", err)
	if err != nil {
		return "", err
	}
	c.logger.Info("Node added", zap.String("result", result))
	return result, nil
}

// RemoveNode stops and forgets a node. There is no undo.
func (c *Controller) RemoveNode(ctx context.Context, nodeID types.NodeID) (string, error) {
	if nodeID == "" {
		return "", errs.New(errs.KindValidation, "node_id is required")
	}
	result, err := c.cluster.RemoveNode(ctx, string(nodeID))
	err = c.record("remove_node", err)
	if err != nil {
		return "", err
	}
	c.logger.Info("Node removed", zap.String("node_id", string(nodeID)), zap.String("result", result))
	return result, nil
}

// ToggleNode starts or stops a node. The action is forwarded as given; the
// cluster answers "Failed" for one it does not know. The result may arrive
// before the node has finished changing state.
func (c *Controller) ToggleNode(ctx context.Context, nodeID types.NodeID, action string) (string, error) {
	if nodeID == "" {
		return "", errs.New(errs.KindValidation, "node_id is required")
	}

	result, err := c.cluster.ToggleNode(ctx, string(nodeID), action)
	err = c.record("toggle_node", err)
	if err != nil {
		return "", err
	}
	c.logger.Info("Node toggled",
		zap.String("node_id", string(nodeID)),
		zap.String("action", action),
		zap.String("result", result))
	return result, nil
}

// InspectNode lists the chunks held by a node, ordered by filename and index.
func (c *Controller) InspectNode(ctx context.Context, nodeID types.NodeID) ([]types.ChunkDescriptor, error) {
	if nodeID == "" {
		return nil, errs.New(errs.KindValidation, "node_id is required")
	}
	resp, err := c.cluster.NodeFiles(ctx, string(nodeID))
	err = c.record("node_files", err)
	if err != nil {
		return nil, err
	}

	chunks := make([]types.ChunkDescriptor, 0, len(resp.Chunks))
	for _, ch := range resp.Chunks {
		chunks = append(chunks, types.ChunkDescriptor{
			ChunkID:  ch.ChunkId,
			Filename: ch.Filename,
			Index:    ch.ChunkIndex,
			Size:     ch.Size,
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Filename != chunks[j].Filename {
			return chunks[i].Filename < chunks[j].Filename
		}
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

// GetFleetStats polls the cluster once. Nodes reported more than once are
// collapsed to their first entry before used space is summed.
func (c *Controller) GetFleetStats(ctx context.Context) (*types.FleetStats, error) {
	resp, err := c.cluster.AdminStats(ctx)
	err = c.record("stats", err)
	if err != nil {
		return nil, err
	}

	stats := Aggregate(resp)
	if stats.DuplicateNodes > 0 {
		c.logger.Warn("Cluster reported duplicate node entries", zap.Int("duplicates", stats.DuplicateNodes))
	}

	counts := map[types.NodeState]int{types.NodeOnline: 0, types.NodeOffline: 0, types.NodeProcessing: 0}
	for _, n := range stats.Nodes {
		counts[n.State]++
	}
	for state, n := range counts {
		c.metrics.FleetNodes.WithLabelValues(string(state)).Set(float64(n))
	}
	return stats, nil
}

// Aggregate converts one stats report into FleetStats.
func Aggregate(resp *protocol.AdminStatsResponse) *types.FleetStats {
	stats := &types.FleetStats{
		TotalUsers:   resp.TotalUsers,
		TotalFiles:   resp.TotalFiles,
		TotalStorage: resp.TotalNetworkStorage,
		Nodes:        make([]types.NodeRecord, 0, len(resp.Nodes)),
	}

	seen := make(map[string]bool, len(resp.Nodes))
	for _, n := range resp.Nodes {
		if n == nil {
			continue
		}
		if seen[n.NodeId] {
			stats.DuplicateNodes++
			continue
		}
		seen[n.NodeId] = true

		rec := types.NodeRecord{
			ID:         types.NodeID(n.NodeId),
			State:      types.NodeState(n.Status),
			IP:         n.Ip,
			Port:       n.Port,
			PID:        n.Pid,
			ChunkCount: n.ChunkCount,
			UsedSpace:  n.UsedSpace,
			TotalSpace: n.TotalSpace,
		}
		stats.Nodes = append(stats.Nodes, rec)
		stats.UsedStorage += rec.UsedSpace
		if rec.State == types.NodeOnline {
			stats.OnlineNodes++
		}
	}
	return stats
}

// record counts the call and reports any failure other than a canceled
// request as the cluster being unavailable, whatever status the cluster sent.
func (c *Controller) record(operation string, err error) error {
	if err == nil {
		c.metrics.FleetCalls.WithLabelValues(operation, metrics.OutcomeSuccess).Inc()
		return nil
	}
	c.metrics.FleetCalls.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
	c.logger.Warn("Fleet call failed", zap.String("operation", operation), zap.Error(err))

	switch errs.KindOf(err) {
	case errs.KindCanceled, errs.KindUpstream:
		return err
	}
	return errs.Wrap(errs.KindUpstream, "storage cluster unavailable", fmt.Errorf("%s: %w", operation, err))
}
