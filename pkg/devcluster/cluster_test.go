package devcluster

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"civicrelay/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func startCluster(t *testing.T, opts Options) (*Cluster, protocol.CivicCloudServiceClient) {
	t.Helper()
	cluster := New(opts, zap.NewNop())
	dialOpts, stop := ServeInProcess(cluster)
	t.Cleanup(stop)
	t.Cleanup(cluster.Close)

	dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	conn, err := grpc.DialContext(context.Background(), InProcessEndpoint, dialOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return cluster, protocol.NewCivicCloudServiceClient(conn)
}

func store(t *testing.T, client protocol.CivicCloudServiceClient, filename string, data []byte, piece int) *protocol.StoreProjectDocumentResponse {
	t.Helper()
	stream, err := client.StoreProjectDocument(context.Background())
	require.NoError(t, err)

	for off := 0; off < len(data); off += piece {
		end := off + piece
		if end > len(data) {
			end = len(data)
		}
		require.NoError(t, stream.Send(&protocol.StoreProjectDocumentRequest{
			Token:    "tok",
			Filename: filename,
			Data:     data[off:end],
			Offset:   int64(off),
		}))
	}
	resp, err := stream.CloseAndRecv()
	require.NoError(t, err)
	return resp
}

func TestStoreAndRetrieve(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 3, ChunkSize: 10})

	data := bytes.Repeat([]byte("0123456789abcdef"), 5)
	resp := store(t, client, "report.pdf", data, 7)

	sum := sha256.Sum256(data)
	assert.Equal(t, "Success", resp.Result)
	assert.Equal(t, hex.EncodeToString(sum[:]), resp.IpfsHash)
	assert.Equal(t, int64(len(data)), resp.Size)

	got, err := client.GetProjectDocument(context.Background(), &protocol.GetProjectDocumentRequest{IpfsHash: resp.IpfsHash})
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, "report.pdf", got.Filename)
}

func TestUnknownDocumentIsEmpty(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 1})

	got, err := client.GetProjectDocument(context.Background(), &protocol.GetProjectDocumentRequest{IpfsHash: "missing"})
	require.NoError(t, err)
	assert.Empty(t, got.Data)
	assert.Empty(t, got.Filename)
}

func TestRoundRobinPlacementIsGapless(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 2, ChunkSize: 4})

	store(t, client, "a.bin", bytes.Repeat([]byte{1}, 16), 16)

	var indexes []int64
	for _, id := range []string{"1", "2"} {
		files, err := client.GetNodeFiles(context.Background(), &protocol.NodeRequest{NodeId: id})
		require.NoError(t, err)
		require.Len(t, files.Chunks, 2, "node %s", id)
		for _, c := range files.Chunks {
			assert.Equal(t, "a.bin", c.Filename)
			assert.Equal(t, int64(4), c.Size)
			indexes = append(indexes, c.ChunkIndex)
		}
	}
	assert.ElementsMatch(t, []int64{0, 1, 2, 3}, indexes)

	stats, err := client.GetAdminStats(context.Background(), &protocol.AdminRequest{AdminToken: "internal"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
	assert.Equal(t, int64(16), stats.UsedNetworkStorage)
	require.Len(t, stats.Nodes, 2)
	assert.Equal(t, "1", stats.Nodes[0].NodeId)
	assert.Equal(t, "Online", stats.Nodes[0].Status)
	assert.Equal(t, int64(2), stats.Nodes[0].ChunkCount)
}

func TestOffsetGapRejected(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 1})

	stream, err := client.StoreProjectDocument(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(&protocol.StoreProjectDocumentRequest{Filename: "x", Data: []byte("abc"), Offset: 0}))
	// A gap may be detected before or after the second send returns.
	_ = stream.Send(&protocol.StoreProjectDocumentRequest{Filename: "x", Data: []byte("def"), Offset: 5})

	_, err = stream.CloseAndRecv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNoOnlineNodesFails(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 0})

	resp := store(t, client, "a.bin", []byte("data"), 4)
	assert.Equal(t, "Failed", resp.Result)
	assert.Empty(t, resp.IpfsHash)
}

func TestToggleSettlesThroughProcessing(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 1, SettleDelay: 500 * time.Millisecond})
	ctx := context.Background()

	resp, err := client.ToggleNode(ctx, &protocol.ToggleNodeRequest{NodeId: "1", Action: ActionStop})
	require.NoError(t, err)
	assert.Equal(t, "Stopped", resp.Result)

	stats, err := client.GetAdminStats(ctx, &protocol.AdminRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Processing", stats.Nodes[0].Status)

	assert.Eventually(t, func() bool {
		stats, err := client.GetAdminStats(ctx, &protocol.AdminRequest{})
		return err == nil && stats.Nodes[0].Status == "Offline" && stats.Nodes[0].Port == 0
	}, 3*time.Second, 10*time.Millisecond)

	resp, err = client.ToggleNode(ctx, &protocol.ToggleNodeRequest{NodeId: "9", Action: ActionStop})
	require.NoError(t, err)
	assert.Equal(t, "Failed", resp.Result)

	resp, err = client.ToggleNode(ctx, &protocol.ToggleNodeRequest{NodeId: "1", Action: "RESTART"})
	require.NoError(t, err)
	assert.Equal(t, "Failed", resp.Result)
}

func TestAddAndRemoveNode(t *testing.T) {
	_, client := startCluster(t, Options{Nodes: 2})
	ctx := context.Background()

	resp, err := client.AddNode(ctx, &protocol.AdminRequest{AdminToken: "internal"})
	require.NoError(t, err)
	assert.Equal(t, "Started", resp.Result)

	stats, err := client.GetAdminStats(ctx, &protocol.AdminRequest{})
	require.NoError(t, err)
	require.Len(t, stats.Nodes, 3)
	assert.Equal(t, "3", stats.Nodes[2].NodeId)
	assert.Equal(t, "Online", stats.Nodes[2].Status)

	resp, err = client.RemoveNode(ctx, &protocol.NodeRequest{NodeId: "2"})
	require.NoError(t, err)
	assert.Equal(t, "Deleted", resp.Result)

	stats, err = client.GetAdminStats(ctx, &protocol.AdminRequest{})
	require.NoError(t, err)
	require.Len(t, stats.Nodes, 2)
	assert.Equal(t, "1", stats.Nodes[0].NodeId)
	assert.Equal(t, "3", stats.Nodes[1].NodeId)
}
