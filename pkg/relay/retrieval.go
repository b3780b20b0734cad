package relay

import (
	"context"
	"fmt"
	"strings"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/protocol"

	"go.uber.org/zap"
)

const defaultDownloadName = "file.bin"

// Suffix matching is case-sensitive.
var contentTypes = []struct {
	suffix      string
	contentType string
}{
	{".pdf", "application/pdf"},
	{".mp4", "video/mp4"},
	{".png", "image/png"},
}

// DocumentFetcher reads a whole document from the storage cluster.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, contentID string) (*protocol.GetProjectDocumentResponse, error)
}

type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Disposition is the Content-Disposition value that lets browsers render
// the document in place.
func (d *Document) Disposition() string {
	return fmt.Sprintf("inline; filename=%q", d.Filename)
}

type RetrievalRelay struct {
	gw      DocumentFetcher
	metrics *metrics.RelayMetrics
	logger  *zap.Logger
}

func NewRetrievalRelay(gw DocumentFetcher, m *metrics.RelayMetrics, logger *zap.Logger) *RetrievalRelay {
	return &RetrievalRelay{gw: gw, metrics: m, logger: logger}
}

// Fetch returns the document for contentID. Every failure, including an
// empty payload, is reported as NotFound without transport detail.
func (r *RetrievalRelay) Fetch(ctx context.Context, contentID string) (*Document, error) {
	notFound := errs.New(errs.KindNotFound, "File not found")
	if contentID == "" {
		r.metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, notFound
	}

	resp, err := r.gw.GetDocument(ctx, contentID)
	if err != nil {
		r.logger.Warn("Document retrieval failed",
			zap.String("content_id", contentID),
			zap.Error(err))
		r.metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		notFound.Err = err
		return nil, notFound
	}
	if len(resp.Data) == 0 {
		r.logger.Debug("Document empty or missing", zap.String("content_id", contentID))
		r.metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, notFound
	}

	name := resp.Filename
	if name == "" {
		name = defaultDownloadName
	}

	r.metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	r.metrics.RetrievalBytes.Add(float64(len(resp.Data)))

	return &Document{
		Filename:    name,
		ContentType: ContentTypeFor(name),
		Data:        resp.Data,
	}, nil
}

// ContentTypeFor maps a filename to the media type the dashboard expects.
func ContentTypeFor(filename string) string {
	for _, ct := range contentTypes {
		if strings.HasSuffix(filename, ct.suffix) {
			return ct.contentType
		}
	}
	return "application/octet-stream"
}
