// Package devcluster is an in-memory CivicCloudService for local
// development and tests. Documents are split into chunks and placed
// round-robin over the online nodes; nothing survives a restart.
package devcluster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"civicrelay/pkg/protocol"
	"civicrelay/pkg/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ActionStart = "START"
	ActionStop  = "STOP"

	resultStarted = "Started"
	resultStopped = "Stopped"
	resultDeleted = "Deleted"
	resultFailed  = "Failed"
	resultSuccess = "Success"

	basePort = 7000
	basePID  = 40000
)

type Options struct {
	Nodes        int
	ChunkSize    int64
	NodeCapacity int64
	// SettleDelay is how long a started or stopped node reports Processing.
	SettleDelay time.Duration
	Users       int64
}

func DefaultOptions() Options {
	return Options{
		Nodes:        3,
		ChunkSize:    2 * 1024 * 1024,
		NodeCapacity: 1024 * 1024 * 1024,
		SettleDelay:  2 * time.Second,
	}
}

type node struct {
	id     string
	num    int
	state  types.NodeState
	pid    int32
	chunks map[string][]byte
	settle *time.Timer
}

type placedChunk struct {
	id    string
	node  string
	index int64
	size  int64
}

type storedFile struct {
	filename string
	size     int64
	chunks   []placedChunk
}

type Cluster struct {
	protocol.UnimplementedCivicCloudServiceServer

	mu     sync.Mutex
	nodes  map[string]*node
	files  map[string]*storedFile
	cursor int
	opts   Options
	logger *zap.Logger
}

// New returns a cluster whose initial nodes are already online.
func New(opts Options, logger *zap.Logger) *Cluster {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.NodeCapacity <= 0 {
		opts.NodeCapacity = DefaultOptions().NodeCapacity
	}

	c := &Cluster{
		nodes:  make(map[string]*node),
		files:  make(map[string]*storedFile),
		opts:   opts,
		logger: logger,
	}
	for i := 1; i <= opts.Nodes; i++ {
		n := c.newNode(i)
		n.state = types.NodeOnline
	}
	return c
}

// Serve runs a gRPC server for c on lis until ctx is done.
func (c *Cluster) Serve(ctx context.Context, lis net.Listener, maxMessageSize int) error {
	opts := protocol.ServerOptions()
	if maxMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMessageSize), grpc.MaxSendMsgSize(maxMessageSize))
	}
	server := grpc.NewServer(opts...)
	protocol.RegisterCivicCloudServiceServer(server, c)

	go func() {
		<-ctx.Done()
		server.GracefulStop()
	}()

	c.logger.Info("Development cluster listening",
		zap.String("address", lis.Addr().String()),
		zap.Int("nodes", c.opts.Nodes),
		zap.Int64("chunk_size", c.opts.ChunkSize))

	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("development cluster stopped: %w", err)
	}
	return nil
}

// Close cancels pending node transitions.
func (c *Cluster) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		if n.settle != nil {
			n.settle.Stop()
		}
	}
}

func (c *Cluster) StoreProjectDocument(stream protocol.CivicCloudService_StoreProjectDocumentServer) error {
	var (
		filename string
		received int64
		hasher   = sha256.New()
		pieces   [][]byte
		current  []byte
	)

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if req.Offset != received {
			return status.Errorf(codes.InvalidArgument, "chunk offset %d, expected %d", req.Offset, received)
		}
		if filename == "" {
			filename = req.Filename
		}

		hasher.Write(req.Data)
		received += int64(len(req.Data))

		data := req.Data
		for len(data) > 0 {
			room := int(c.opts.ChunkSize) - len(current)
			if room > len(data) {
				room = len(data)
			}
			current = append(current, data[:room]...)
			data = data[room:]
			if int64(len(current)) == c.opts.ChunkSize {
				pieces = append(pieces, current)
				current = nil
			}
		}
	}
	if len(current) > 0 {
		pieces = append(pieces, current)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	if err := c.place(hash, filename, received, pieces); err != nil {
		c.logger.Warn("Document not stored", zap.String("filename", filename), zap.Error(err))
		return stream.SendAndClose(&protocol.StoreProjectDocumentResponse{Result: resultFailed})
	}

	c.logger.Info("Document stored",
		zap.String("content_id", hash),
		zap.String("filename", filename),
		zap.Int64("size", received),
		zap.Int("chunks", len(pieces)))

	return stream.SendAndClose(&protocol.StoreProjectDocumentResponse{
		IpfsHash: hash,
		Result:   resultSuccess,
		Filename: filename,
		Size:     received,
	})
}

func (c *Cluster) place(hash, filename string, size int64, pieces [][]byte) error {
	if filename == "" {
		return fmt.Errorf("stream carried no filename")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	online := c.onlineLocked()
	if len(online) == 0 {
		return fmt.Errorf("no nodes online")
	}

	file := &storedFile{filename: filename, size: size}
	for i, data := range pieces {
		n := online[(c.cursor+i)%len(online)]
		id := fmt.Sprintf("%s_%d", hash, i)
		n.chunks[id] = data
		file.chunks = append(file.chunks, placedChunk{id: id, node: n.id, index: int64(i), size: int64(len(data))})
	}
	c.cursor = (c.cursor + len(pieces)) % len(online)
	c.files[hash] = file
	return nil
}

// GetProjectDocument reassembles a document from its chunks. Chunks on
// nodes that are not online are skipped; an unknown hash returns an empty
// response.
func (c *Cluster) GetProjectDocument(ctx context.Context, req *protocol.GetProjectDocumentRequest) (*protocol.GetProjectDocumentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, ok := c.files[req.IpfsHash]
	if !ok {
		return &protocol.GetProjectDocumentResponse{}, nil
	}

	data := make([]byte, 0, file.size)
	for _, pc := range file.chunks {
		n, ok := c.nodes[pc.node]
		if !ok || n.state != types.NodeOnline {
			continue
		}
		data = append(data, n.chunks[pc.id]...)
	}
	if len(data) == 0 {
		return &protocol.GetProjectDocumentResponse{}, nil
	}
	return &protocol.GetProjectDocumentResponse{Data: data, Filename: file.filename}, nil
}

func (c *Cluster) GetAdminStats(ctx context.Context, req *protocol.AdminRequest) (*protocol.AdminStatsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := &protocol.AdminStatsResponse{
		TotalUsers:          c.opts.Users,
		TotalFiles:          int64(len(c.files)),
		TotalNetworkStorage: c.opts.NodeCapacity * int64(len(c.nodes)),
	}
	for _, n := range c.sortedLocked() {
		var used int64
		for _, data := range n.chunks {
			used += int64(len(data))
		}
		detail := &protocol.NodeDetail{
			NodeId:     n.id,
			Status:     string(n.state),
			Ip:         "127.0.0.1",
			TotalSpace: c.opts.NodeCapacity,
			UsedSpace:  used,
			ChunkCount: int64(len(n.chunks)),
		}
		if n.state == types.NodeOnline {
			detail.Port = int32(basePort + n.num)
		}
		if n.state != types.NodeOffline {
			detail.Pid = n.pid
		}
		resp.UsedNetworkStorage += used
		resp.Nodes = append(resp.Nodes, detail)
	}
	return resp, nil
}

func (c *Cluster) ToggleNode(ctx context.Context, req *protocol.ToggleNodeRequest) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &protocol.Response{Result: c.toggleLocked(req.NodeId, req.Action)}, nil
}

func (c *Cluster) AddNode(ctx context.Context, req *protocol.AdminRequest) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := 1
	for _, n := range c.nodes {
		if n.num >= next {
			next = n.num + 1
		}
	}
	return &protocol.Response{Result: c.toggleLocked(strconv.Itoa(next), ActionStart)}, nil
}

// RemoveNode stops and forgets a node. Chunks it held are lost.
func (c *Cluster) RemoveNode(ctx context.Context, req *protocol.NodeRequest) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[req.NodeId]; ok {
		if n.settle != nil {
			n.settle.Stop()
		}
		delete(c.nodes, req.NodeId)
		c.logger.Info("Node removed", zap.String("node_id", req.NodeId), zap.Int("chunks_lost", len(n.chunks)))
	}
	return &protocol.Response{Result: resultDeleted}, nil
}

func (c *Cluster) GetNodeFiles(ctx context.Context, req *protocol.NodeRequest) (*protocol.NodeFilesResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := &protocol.NodeFilesResponse{NodeId: req.NodeId}
	for _, file := range c.files {
		for _, pc := range file.chunks {
			if pc.node != req.NodeId {
				continue
			}
			resp.Chunks = append(resp.Chunks, &protocol.FileChunkDetail{
				Filename:   file.filename,
				ChunkId:    pc.id,
				ChunkIndex: pc.index,
				Size:       pc.size,
			})
		}
	}
	sort.Slice(resp.Chunks, func(i, j int) bool {
		a, b := resp.Chunks[i], resp.Chunks[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	return resp, nil
}

func (c *Cluster) toggleLocked(id, action string) string {
	switch action {
	case ActionStart:
		n, ok := c.nodes[id]
		if !ok {
			num, err := strconv.Atoi(id)
			if err != nil || num <= 0 {
				return resultFailed
			}
			n = c.newNode(num)
		}
		c.transitionLocked(n, types.NodeOnline)
		c.logger.Info("Node starting", zap.String("node_id", id))
		return resultStarted

	case ActionStop:
		n, ok := c.nodes[id]
		if !ok {
			return resultFailed
		}
		c.transitionLocked(n, types.NodeOffline)
		c.logger.Info("Node stopping", zap.String("node_id", id))
		return resultStopped
	}
	return resultFailed
}

// transitionLocked puts n in Processing and moves it to target once the
// settle delay has passed.
func (c *Cluster) transitionLocked(n *node, target types.NodeState) {
	if n.settle != nil {
		n.settle.Stop()
		n.settle = nil
	}
	if target == types.NodeOnline && n.state == types.NodeOffline {
		n.pid = int32(basePID + n.num)
	}
	if c.opts.SettleDelay <= 0 {
		n.state = target
		return
	}

	n.state = types.NodeProcessing
	n.settle = time.AfterFunc(c.opts.SettleDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if current, ok := c.nodes[n.id]; ok && current == n {
			n.state = target
			n.settle = nil
		}
	})
}

func (c *Cluster) newNode(num int) *node {
	n := &node{
		id:     strconv.Itoa(num),
		num:    num,
		state:  types.NodeOffline,
		pid:    int32(basePID + num),
		chunks: make(map[string][]byte),
	}
	c.nodes[n.id] = n
	return n
}

func (c *Cluster) sortedLocked() []*node {
	nodes := make([]*node, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })
	return nodes
}

func (c *Cluster) onlineLocked() []*node {
	var online []*node
	for _, n := range c.sortedLocked() {
		if n.state == types.NodeOnline {
			online = append(online, n)
		}
	}
	return online
}
