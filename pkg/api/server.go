// Package api is the HTTP surface of the relay: project documents for the
// governance dashboard and fleet control for operators.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"civicrelay/pkg/auth"
	"civicrelay/pkg/fleet"
	"civicrelay/pkg/metastore"
	"civicrelay/pkg/metrics"
	"civicrelay/pkg/relay"
	"civicrelay/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"
)

// ProjectStore is the slice of the metadata store the handlers need.
type ProjectStore interface {
	List(ctx context.Context, f metastore.Filter) ([]types.ProjectRecord, error)
	RequestDeletion(ctx context.Context, id types.ProjectID) (*types.ProjectRecord, error)
	Delete(ctx context.Context, id types.ProjectID) error
}

// ClusterHealth reports the state of the storage cluster connection.
type ClusterHealth interface {
	State() connectivity.State
}

type Deps struct {
	Uploads   *relay.UploadRelay
	Documents *relay.RetrievalRelay
	Fleet     *fleet.Controller
	Projects  ProjectStore
	Tokens    *auth.TokenManager
	Cluster   ClusterHealth
	Metrics   *metrics.RelayMetrics
	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
}

type Options struct {
	// ProtectAdmin requires the admin identity on the fleet routes.
	ProtectAdmin bool
	MetricsPath  string
}

type Server struct {
	engine *gin.Engine
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func NewServer(opts Options, deps Deps, logger *zap.Logger) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		engine: gin.New(),
		deps:   deps,
		opts:   opts,
		logger: logger,
	}

	s.engine.Use(
		RequestID(),
		AccessLog(logger),
		Metrics(deps.Metrics),
		gin.CustomRecovery(s.onPanic),
		ErrorResponder(),
		auth.Authenticate(deps.Tokens, logger),
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", s.health)
	if s.deps.Gatherer != nil {
		r.GET(s.opts.MetricsPath, gin.WrapH(metrics.Handler(s.deps.Gatherer)))
	}

	projects := r.Group("/projects")
	{
		projects.GET("", s.listProjects)
		projects.GET("/:id/view", s.viewDocument)
		projects.POST("", auth.RequireIdentity(), s.createProject)
		projects.POST("/:id/request-delete", auth.RequireIdentity(), s.requestDeletion)
		projects.DELETE("/:id", auth.RequireAdmin(), s.deleteProject)
	}

	admin := r.Group("/admin")
	if s.opts.ProtectAdmin {
		admin.Use(auth.RequireAdmin())
	}
	{
		admin.GET("/stats", s.fleetStats)
		admin.POST("/node", s.toggleNode)
		admin.POST("/node/add", s.addNode)
		admin.DELETE("/node/:id", s.removeNode)
		admin.GET("/node/:id/files", s.nodeFiles)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on address until ctx is done, then drains in-flight requests
// for up to shutdownTimeout. Only a header read timeout is set: transfers
// may legitimately take many minutes.
func (s *Server) Run(ctx context.Context, address string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("address", address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	state := s.deps.Cluster.State()
	status := http.StatusOK
	if state == connectivity.TransientFailure || state == connectivity.Shutdown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"cluster": state.String()})
}

func (s *Server) onPanic(c *gin.Context, recovered interface{}) {
	s.logger.Error("Handler panicked",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Any("panic", recovered))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
