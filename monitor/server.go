// Package monitor serves the solver's status and prometheus metrics over
// HTTP.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PayerStatus struct {
	Address  string `json:"address"`
	Enabled  bool   `json:"enabled"`
	Lamports uint64 `json:"lamports"`
	Tokens   uint64 `json:"tokens"`
}

type Status struct {
	Slot           uint64        `json:"slot"`
	KnownOrders    int           `json:"knownOrders"`
	Candidates     int           `json:"candidates"`
	Deferred       int           `json:"deferred"`
	InFlight       int           `json:"inFlight"`
	PendingExecute int           `json:"pendingExecute"`
	Payers         []PayerStatus `json:"payers"`
}

// StatusProvider answers status queries. The solver implements it by asking
// its own loop.
type StatusProvider interface {
	Status(ctx context.Context) (*Status, error)
}

type Server struct {
	logger     *zap.SugaredLogger
	provider   StatusProvider
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(listen string, provider StatusProvider, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{
		logger:   logger,
		provider: provider,
		router:   router,
	}
	g := router.Group("/api")
	g.GET("/status", s.status)
	g.GET("/payers", s.payers)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("start monitor server", "listen", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) query(c *gin.Context) (*Status, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status, err := s.provider.Status(ctx)
	if err != nil {
		s.logger.Warnw("status query", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return status, true
}

func (s *Server) status(c *gin.Context) {
	if status, ok := s.query(c); ok {
		c.JSON(http.StatusOK, status)
	}
}

func (s *Server) payers(c *gin.Context) {
	if status, ok := s.query(c); ok {
		c.JSON(http.StatusOK, status.Payers)
	}
}
