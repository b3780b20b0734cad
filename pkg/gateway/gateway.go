// Package gateway holds the single shared connection to the storage
// cluster's CivicCloudService and the per-call policy around it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicrelay/pkg/config"
	"civicrelay/pkg/errs"
	"civicrelay/pkg/protocol"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultCommitTimeout = 10 * time.Minute
)

type Options struct {
	Endpoint       string
	MaxMessageSize int
	CallTimeout    time.Duration
	CommitTimeout  time.Duration
	AdminToken     string
	PublicToken    string

	// Registerer receives the client-side gRPC metrics. Nil disables them.
	Registerer prometheus.Registerer
	// DialOptions are appended after the defaults; tests use it for bufconn.
	DialOptions []grpc.DialOption
}

func OptionsFromConfig(cfg *config.ClusterConfig) Options {
	return Options{
		Endpoint:       cfg.Endpoint,
		MaxMessageSize: int(cfg.MaxMessageSize),
		CallTimeout:    cfg.CallTimeout.Std(),
		CommitTimeout:  cfg.CommitTimeout.Std(),
		AdminToken:     cfg.AdminToken,
		PublicToken:    cfg.PublicToken,
	}
}

// Client is safe for concurrent use by any number of relays and fleet
// calls; it carries no per-request state.
type Client struct {
	conn   *grpc.ClientConn
	rpc    protocol.CivicCloudServiceClient
	opts   Options
	logger *zap.Logger
}

// Dial creates the connection without waiting for it to become ready, so an
// unreachable cluster surfaces as an Upstream error on the first call.
func Dial(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("cluster endpoint is required")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: false,
		}),
	}
	if opts.MaxMessageSize > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMessageSize),
			grpc.MaxCallSendMsgSize(opts.MaxMessageSize),
		))
	}
	if opts.Registerer != nil {
		clientMetrics := grpc_prometheus.NewClientMetrics()
		if err := opts.Registerer.Register(clientMetrics); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("failed to register gRPC client metrics: %w", err)
			}
			clientMetrics = already.ExistingCollector.(*grpc_prometheus.ClientMetrics)
		}
		dialOpts = append(dialOpts,
			grpc.WithChainUnaryInterceptor(clientMetrics.UnaryClientInterceptor()),
			grpc.WithChainStreamInterceptor(clientMetrics.StreamClientInterceptor()),
		)
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.DialContext(ctx, opts.Endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial storage cluster %s: %w", opts.Endpoint, err)
	}

	logger.Info("Storage cluster gateway ready",
		zap.String("endpoint", opts.Endpoint),
		zap.Int("max_message_size", opts.MaxMessageSize),
		zap.Duration("call_timeout", opts.CallTimeout),
		zap.Duration("commit_timeout", opts.CommitTimeout))

	return &Client{
		conn:   conn,
		rpc:    protocol.NewCivicCloudServiceClient(conn),
		opts:   opts,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// State reports the transport's connectivity state without blocking.
func (c *Client) State() connectivity.State {
	return c.conn.GetState()
}

// WatchState logs every connectivity transition until ctx is done.
func (c *Client) WatchState(ctx context.Context) error {
	state := c.conn.GetState()
	for c.conn.WaitForStateChange(ctx, state) {
		next := c.conn.GetState()
		level := zap.InfoLevel
		if next == connectivity.TransientFailure {
			level = zap.WarnLevel
		}
		c.logger.Log(level, "Storage cluster connection state changed",
			zap.Stringer("from", state),
			zap.Stringer("to", next))
		state = next
	}
	return nil
}

// CommitTimeout bounds how long a relay waits for the cluster's commit
// after it finished sending an upload.
func (c *Client) CommitTimeout() time.Duration {
	return c.opts.CommitTimeout
}

// OpenUpload starts a StoreProjectDocument stream bound to ctx. The caller
// owns the stream's lifetime through ctx.
func (c *Client) OpenUpload(ctx context.Context) (protocol.CivicCloudService_StoreProjectDocumentClient, error) {
	stream, err := c.rpc.StoreProjectDocument(ctx)
	if err != nil {
		return nil, Classify("open upload stream", err)
	}
	return stream, nil
}

func (c *Client) GetDocument(ctx context.Context, contentID string) (*protocol.GetProjectDocumentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.GetProjectDocument(ctx, &protocol.GetProjectDocumentRequest{
		Token:    c.opts.PublicToken,
		IpfsHash: contentID,
	})
	if err != nil {
		return nil, Classify("get document", err)
	}
	return resp, nil
}

func (c *Client) AdminStats(ctx context.Context) (*protocol.AdminStatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.GetAdminStats(ctx, &protocol.AdminRequest{AdminToken: c.opts.AdminToken})
	if err != nil {
		return nil, Classify("get admin stats", err)
	}
	return resp, nil
}

func (c *Client) ToggleNode(ctx context.Context, nodeID, action string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.ToggleNode(ctx, &protocol.ToggleNodeRequest{NodeId: nodeID, Action: action})
	if err != nil {
		return "", Classify("toggle node", err)
	}
	return resp.Result, nil
}

func (c *Client) AddNode(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.AddNode(ctx, &protocol.AdminRequest{AdminToken: c.opts.AdminToken})
	if err != nil {
		return "", Classify("add node", err)
	}
	return resp.Result, nil
}

func (c *Client) RemoveNode(ctx context.Context, nodeID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.RemoveNode(ctx, &protocol.NodeRequest{NodeId: nodeID})
	if err != nil {
		return "", Classify("remove node", err)
	}
	return resp.Result, nil
}

func (c *Client) NodeFiles(ctx context.Context, nodeID string) (*protocol.NodeFilesResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	resp, err := c.rpc.GetNodeFiles(ctx, &protocol.NodeRequest{NodeId: nodeID})
	if err != nil {
		return nil, Classify("get node files", err)
	}
	return resp, nil
}

// Classify turns a transport error into a typed failure. The gRPC message is
// kept as the cause for logging and never becomes the caller-facing text.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return errs.Wrap(errs.KindCanceled, "request canceled", fmt.Errorf("%s: %w", op, err))
	case codes.NotFound:
		return errs.Wrap(errs.KindNotFound, "not found", fmt.Errorf("%s: %w", op, err))
	case codes.InvalidArgument:
		return errs.Wrap(errs.KindValidation, "rejected by storage cluster", fmt.Errorf("%s: %w", op, err))
	default:
		return errs.Wrap(errs.KindUpstream, "storage cluster unavailable", fmt.Errorf("%s: %w", op, err))
	}
}
