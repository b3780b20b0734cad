package gateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"civicrelay/pkg/devcluster"
	"civicrelay/pkg/errs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func dialDevCluster(t *testing.T, reg prometheus.Registerer) *Client {
	t.Helper()
	cluster := devcluster.New(devcluster.Options{Nodes: 2}, zap.NewNop())
	dialOpts, stop := devcluster.ServeInProcess(cluster)
	t.Cleanup(stop)

	c, err := Dial(context.Background(), Options{
		Endpoint:    devcluster.InProcessEndpoint,
		AdminToken:  "internal",
		PublicToken: "public",
		Registerer:  reg,
		DialOptions: dialOpts,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialRequiresEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestUnaryCallsReachCluster(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := dialDevCluster(t, reg)
	ctx := context.Background()

	stats, err := c.AdminStats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.Nodes, 2)

	result, err := c.AddNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Started", result)

	doc, err := c.GetDocument(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, doc.Data)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "grpc_client_started_total")
}

func TestMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	dialDevCluster(t, reg)
	dialDevCluster(t, reg)
}

func TestUnreachableClusterIsUpstream(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	c, err := Dial(context.Background(), Options{Endpoint: addr, CallTimeout: 2 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.AdminStats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Upstream)
	assert.Equal(t, "storage cluster unavailable", errs.Message(err))
	assert.NotContains(t, errs.Message(err), addr)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("op", nil))

	tests := []struct {
		code codes.Code
		want *errs.Error
	}{
		{codes.Unavailable, errs.Upstream},
		{codes.DeadlineExceeded, errs.Upstream},
		{codes.Internal, errs.Upstream},
		{codes.Canceled, errs.Canceled},
		{codes.NotFound, errs.NotFound},
		{codes.InvalidArgument, errs.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := Classify("op", status.Error(tt.code, "dial tcp 10.0.0.1:9002: refused"))
			assert.ErrorIs(t, err, tt.want)
			assert.NotContains(t, errs.Message(err), "10.0.0.1")
		})
	}

	typed := errs.New(errs.KindValidation, "bad")
	assert.Same(t, typed, Classify("op", typed))

	assert.ErrorIs(t, Classify("op", errors.New("plain")), errs.Upstream)
}

func TestWatchStateReturnsOnCancel(t *testing.T) {
	c := dialDevCluster(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.AdminStats(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.WatchState(ctx))
}
