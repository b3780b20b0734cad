// Package relay moves documents between HTTP clients and the storage
// cluster. Uploads are staged on disk and streamed in fixed-size chunks;
// downloads are a single unary call.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/gateway"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/protocol"
	"civicrelay/pkg/staging"
	"civicrelay/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewProjectMarker is the project id sent with every chunk of an upload
// that creates a project.
const NewProjectMarker = "new"

const (
	commitResultSuccess = "Success"
	projectLifetime     = 30 * 24 * time.Hour
)

type State int

const (
	StateReceiving State = iota
	StateStaged
	StateStreaming
	StateCommitted
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceiving:
		return "RECEIVING"
	case StateStaged:
		return "STAGED"
	case StateStreaming:
		return "STREAMING"
	case StateCommitted:
		return "COMMITTED"
	case StatePersisted:
		return "PERSISTED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StreamOpener opens upload streams on the storage cluster.
type StreamOpener interface {
	OpenUpload(ctx context.Context) (protocol.CivicCloudService_StoreProjectDocumentClient, error)
	CommitTimeout() time.Duration
}

// ProjectCreator persists the record for a committed upload.
type ProjectCreator interface {
	Create(ctx context.Context, rec *types.ProjectRecord) error
}

// Draft holds the governance fields submitted alongside a document.
type Draft struct {
	Title       string
	Description string
	Proposer    string
	FundingGoal float64
}

type UploadRequest struct {
	// Token is the identity token forwarded to the cluster on every chunk.
	Token    string
	Filename string
	// DeclaredSize is the size the client announced, or -1 when unknown.
	DeclaredSize int64
	Body         io.Reader
	Draft        Draft
	// OnProgress, when set, is called from the uploading goroutine.
	OnProgress func(Progress)
}

// Result of a transfer that reached the cluster. MetadataErr set means the
// document is stored but no record points at it.
type Result struct {
	Commit      types.DocumentCommit
	Record      *types.ProjectRecord
	MetadataErr error
}

func (r *Result) Partial() bool { return r.MetadataErr != nil }

type Progress struct {
	State    State
	Streamed int64
	Total    int64
	Percent  int
}

type UploadOptions struct {
	ChunkSize int64
	MaxSize   int64
}

type UploadRelay struct {
	area      *staging.Area
	gw        StreamOpener
	store     ProjectCreator
	chunkSize int64
	maxSize   int64
	metrics   *metrics.RelayMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewUploadRelay(area *staging.Area, gw StreamOpener, store ProjectCreator, opts UploadOptions, m *metrics.RelayMetrics, logger *zap.Logger) *UploadRelay {
	return &UploadRelay{
		area:      area,
		gw:        gw,
		store:     store,
		chunkSize: opts.ChunkSize,
		maxSize:   opts.MaxSize,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// UploadSession is one upload from first byte to cleanup. It is owned by
// the request goroutine; Progress and State may be read from elsewhere.
type UploadSession struct {
	ID       string
	token    string
	filename string
	declared int64
	file     *staging.File
	logger   *zap.Logger
	relay    *UploadRelay
	started  time.Time
	released sync.Once

	mu         sync.Mutex
	state      State
	err        error
	staged     int64
	streamed   int64
	flushed    bool
	lastPct    int
	onProgress func(Progress)
}

// Open validates the announced upload and reserves its staging file.
func (r *UploadRelay) Open(token, filename string, declared int64) (*UploadSession, error) {
	if filename == "" {
		return nil, errs.New(errs.KindValidation, "file is required")
	}
	if declared > r.maxSize {
		return nil, errs.New(errs.KindTooLarge, fmt.Sprintf("file exceeds maximum size of %d bytes", r.maxSize))
	}

	file, err := r.area.Create(filename)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to stage upload", err)
	}

	r.metrics.UploadsInFlight.Inc()

	id := uuid.NewString()
	return &UploadSession{
		ID:       id,
		token:    token,
		filename: filename,
		declared: declared,
		file:     file,
		relay:    r,
		started:  r.now(),
		state:    StateReceiving,
		logger:   r.logger.With(zap.String("session_id", id), zap.String("filename", filename)),
	}, nil
}

// OnProgress sets the callback invoked as chunks are handed to the cluster.
func (s *UploadSession) OnProgress(fn func(Progress)) {
	s.onProgress = fn
}

// Receive copies the client's bytes into the staging file and seals it.
func (r *UploadRelay) Receive(ctx context.Context, s *UploadSession, body io.Reader) (err error) {
	if st := s.State(); st != StateReceiving {
		return fmt.Errorf("session %s cannot receive in state %s", s.ID, st)
	}
	defer func() {
		if err != nil {
			s.fail(err)
		}
	}()

	limit := r.maxSize
	if s.declared >= 0 {
		limit = s.declared
	}

	_, err = s.file.Fill(ctx, body, limit)
	switch {
	case err == nil:
	case errors.Is(err, staging.ErrSizeLimit) && s.declared >= 0:
		return errs.New(errs.KindValidation, "file size does not match declared size")
	case errors.Is(err, staging.ErrSizeLimit):
		return errs.New(errs.KindTooLarge, fmt.Sprintf("file exceeds maximum size of %d bytes", r.maxSize))
	case ctx.Err() != nil, errors.Is(err, io.ErrUnexpectedEOF):
		// A body cut short means the client went away before the
		// request context noticed.
		return errs.Wrap(errs.KindCanceled, "request canceled", err)
	default:
		return errs.Wrap(errs.KindValidation, "failed to read upload body", err)
	}

	if err := s.file.Seal(); err != nil {
		return errs.Wrap(errs.KindInternal, "failed to stage upload", err)
	}

	size := s.file.Size()
	if s.declared >= 0 && size != s.declared {
		return errs.New(errs.KindValidation, "file size does not match declared size")
	}
	if size == 0 {
		return errs.New(errs.KindValidation, "file is empty")
	}

	s.mu.Lock()
	s.staged = size
	s.mu.Unlock()
	s.setState(StateStaged)

	s.logger.Debug("Upload staged", zap.Int64("size", size))
	return nil
}

// Forward streams the staged file to the cluster, waits for its commit and
// writes the project record. A non-nil Result with MetadataErr set is a
// partial success.
func (r *UploadRelay) Forward(ctx context.Context, s *UploadSession, draft Draft) (res *Result, err error) {
	if st := s.State(); st != StateStaged {
		return nil, fmt.Errorf("session %s cannot stream in state %s", s.ID, st)
	}
	defer func() {
		if err != nil {
			s.fail(err)
		}
	}()

	s.setState(StateStreaming)

	// The stream outlives the request context once CloseSend succeeds, so it
	// gets its own cancel that the request context triggers until then.
	streamCtx, cancelStream := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelStream()
	stop := context.AfterFunc(ctx, cancelStream)
	defer stop()

	stream, err := r.gw.OpenUpload(streamCtx)
	if err != nil {
		return nil, err
	}

	src, err := s.file.Open()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to read staged upload", err)
	}
	defer src.Close()

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindCanceled, "request canceled", ctx.Err())
		}

		buf := make([]byte, r.chunkSize)
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			msg := &protocol.StoreProjectDocumentRequest{
				Token:          s.token,
				ProjectId:      NewProjectMarker,
				Filename:       s.filename,
				Data:           buf[:n],
				ProposerWallet: draft.Proposer,
				Offset:         offset,
			}
			if err := stream.Send(msg); err != nil {
				if err == io.EOF {
					// The server ended the stream; the status is on the receive side.
					_, err = stream.CloseAndRecv()
				}
				if ctx.Err() != nil {
					return nil, errs.Wrap(errs.KindCanceled, "request canceled", err)
				}
				return nil, gateway.Classify("send chunk", err)
			}
			offset += int64(n)
			s.advance(int64(n))
			r.metrics.UploadBytes.Add(float64(n))
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, errs.Wrap(errs.KindInternal, "failed to read staged upload", readErr)
		}
	}

	if offset != s.stagedSize() {
		return nil, errs.New(errs.KindInternal, fmt.Sprintf("streamed %d of %d staged bytes", offset, s.stagedSize()))
	}

	// Detach from the request context. False means it already fired.
	if !stop() {
		return nil, errs.Wrap(errs.KindCanceled, "request canceled", ctx.Err())
	}

	if err := stream.CloseSend(); err != nil {
		return nil, gateway.Classify("close upload stream", err)
	}
	s.markFlushed()

	var timedOut atomic.Bool
	commitTimer := time.AfterFunc(r.gw.CommitTimeout(), func() {
		timedOut.Store(true)
		cancelStream()
	})
	defer commitTimer.Stop()

	resp, err := stream.CloseAndRecv()
	if err != nil {
		if timedOut.Load() {
			return nil, errs.Wrap(errs.KindUpstream, "storage cluster did not commit in time", err)
		}
		return nil, gateway.Classify("await commit", err)
	}
	if resp.IpfsHash == "" || (resp.Result != "" && resp.Result != commitResultSuccess) {
		return nil, errs.New(errs.KindUpstream, "storage cluster rejected the document")
	}

	commit := types.DocumentCommit{
		ContentID: types.ContentID(resp.IpfsHash),
		Filename:  resp.Filename,
		Size:      resp.Size,
	}
	if commit.Filename == "" {
		commit.Filename = s.filename
	}
	if commit.Size == 0 {
		commit.Size = offset
	}

	if ctx.Err() != nil {
		s.logger.Warn("Commit discarded, client went away",
			zap.String("content_id", string(commit.ContentID)))
		return nil, errs.Wrap(errs.KindCanceled, "request canceled", ctx.Err())
	}
	s.setState(StateCommitted)

	s.logger.Info("Upload committed",
		zap.String("content_id", string(commit.ContentID)),
		zap.Int64("size", commit.Size))

	rec := r.newRecord(commit, draft)
	if err := r.store.Create(ctx, rec); err != nil {
		s.logger.Error("Project record not written, document orphaned",
			zap.String("content_id", string(commit.ContentID)),
			zap.Error(err))
		return &Result{Commit: commit, MetadataErr: err}, nil
	}
	s.setState(StatePersisted)

	return &Result{Commit: commit, Record: rec}, nil
}

// Upload runs a whole session: open, receive, forward. The staging file is
// gone when Upload returns, whatever the outcome.
func (r *UploadRelay) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	s, err := r.Open(req.Token, req.Filename, req.DeclaredSize)
	if err != nil {
		r.observe(outcomeOf(err), 0)
		return nil, err
	}
	defer s.Release()
	s.OnProgress(req.OnProgress)

	s.logger.Info("Upload started", zap.Int64("declared_size", req.DeclaredSize))

	if err := r.Receive(ctx, s, req.Body); err != nil {
		s.logger.Warn("Upload failed while receiving", zap.Error(err))
		return nil, err
	}

	res, err := r.Forward(ctx, s, req.Draft)
	if err != nil {
		s.logger.Warn("Upload failed while forwarding", zap.Error(err))
		return nil, err
	}
	return res, nil
}

// finish records the session's outcome once, when its staging file goes away.
func (r *UploadRelay) finish(s *UploadSession) {
	r.metrics.UploadsInFlight.Dec()

	s.mu.Lock()
	st, err := s.state, s.err
	s.mu.Unlock()

	outcome := metrics.OutcomeFailure
	switch st {
	case StatePersisted:
		outcome = metrics.OutcomeSuccess
	case StateCommitted:
		outcome = metrics.OutcomePartial
	case StateFailed:
		outcome = outcomeOf(err)
	}
	r.observe(outcome, r.now().Sub(s.started))
}

func (r *UploadRelay) observe(outcome string, elapsed time.Duration) {
	r.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	r.metrics.UploadDuration.Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	if errs.KindOf(err) == errs.KindCanceled {
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeFailure
}

func (r *UploadRelay) newRecord(commit types.DocumentCommit, draft Draft) *types.ProjectRecord {
	now := r.now().UTC()
	return &types.ProjectRecord{
		ID:           types.ProjectID(uuid.NewString()),
		BlockchainID: now.UnixMilli(),
		Title:        draft.Title,
		Description:  draft.Description,
		ContentID:    commit.ContentID,
		FundingGoal:  draft.FundingGoal,
		Deadline:     now.Add(projectLifetime).Unix(),
		Proposer:     draft.Proposer,
		Status:       types.StatusProposed,
		Documents: []types.DocumentRef{{
			ContentID:  commit.ContentID,
			Filename:   commit.Filename,
			Size:       commit.Size,
			UploadedAt: now,
		}},
		Milestones: []types.Milestone{},
		CreatedAt:  now,
		UpdatedAt: now,
	}
}

// Release removes the staging file and records the session outcome. Safe
// to call more than once.
func (s *UploadSession) Release() error {
	s.released.Do(func() { s.relay.finish(s) })
	return s.file.Release()
}

func (s *UploadSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *UploadSession) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// progressLocked reports streamed bytes against the declared size, or the
// staged size when none was declared. It stays below 100 until the stream
// has been flushed.
func (s *UploadSession) progressLocked() Progress {
	total := s.declared
	if total < 0 {
		total = s.staged
	}

	pct := 0
	switch {
	case s.flushed:
		pct = 100
	case total > 0:
		pct = int(s.streamed * 100 / total)
		if pct > 99 {
			pct = 99
		}
	}
	if pct < s.lastPct {
		pct = s.lastPct
	}
	s.lastPct = pct

	return Progress{State: s.state, Streamed: s.streamed, Total: total, Percent: pct}
}

func (s *UploadSession) stagedSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged
}

func (s *UploadSession) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *UploadSession) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()
}

func (s *UploadSession) advance(n int64) {
	s.mu.Lock()
	s.streamed += n
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

func (s *UploadSession) markFlushed() {
	s.mu.Lock()
	s.flushed = true
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

func (s *UploadSession) notify(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}
