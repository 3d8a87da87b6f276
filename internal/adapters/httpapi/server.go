package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap/internal/app/playback"
	"github.com/ghalamif/EdgeTap/internal/domain"
)

const shutdownTimeout = 5 * time.Second

// Backend is the read side the HTTP surface exposes.
type Backend interface {
	Snapshot(n int) []domain.Record
	Status() domain.Status
	Playback(k int) (playback.Result, error)
}

type Server struct {
	addr      string
	backend   Backend
	threshold float64
	logger    zerolog.Logger
	router    *gin.Engine
}

type snapshotResponse struct {
	Records []domain.Record `json:"records"`
}

type skippedLine struct {
	Line  int64  `json:"line"`
	Error string `json:"error"`
}

type playbackResponse struct {
	Records []domain.Record  `json:"records"`
	Skipped []skippedLine    `json:"skipped"`
	Summary playback.Summary `json:"summary"`
}

type statusResponse struct {
	domain.Status
	Degraded bool `json:"degraded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the query routes. gatherer may be nil, in which case
// /metrics serves the default registry.
func NewServer(addr string, b Backend, gatherer prometheus.Gatherer, threshold float64, logger zerolog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if threshold <= 0 {
		threshold = playback.DefaultAnomalyThreshold
	}

	s := &Server{
		addr:      addr,
		backend:   b,
		threshold: threshold,
		logger:    logger,
		router:    gin.New(),
	}

	s.router.Use(gin.Recovery(), s.accessLog())

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/snapshot", s.Snapshot)
		v1.GET("/playback", s.Playback)
		v1.GET("/status", s.Status)
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Err(err).Msg("http server shutdown")
		return err
	}
	s.logger.Warn().Msg("http server stopped")
	return nil
}

// Snapshot returns the latest n buffered records, oldest first.
func (s *Server) Snapshot(c *gin.Context) {
	n, ok := intQuery(c, "n")
	if !ok {
		return
	}
	recs := s.backend.Snapshot(n)
	if recs == nil {
		recs = []domain.Record{}
	}
	c.JSON(http.StatusOK, snapshotResponse{Records: recs})
}

// Playback replays the tail of the durable log with its fault summary.
func (s *Server) Playback(c *gin.Context) {
	k, ok := intQuery(c, "k")
	if !ok {
		return
	}
	res, err := s.backend.Playback(k)
	if err != nil {
		s.logger.Err(err).Msg("playback failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := playbackResponse{
		Records: res.Records,
		Skipped: make([]skippedLine, 0, len(res.Skipped)),
		Summary: playback.Summarize(res.Records, s.threshold),
	}
	if resp.Records == nil {
		resp.Records = []domain.Record{}
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedLine{Line: sk.LineNo, Error: sk.Err.Error()})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Status(c *gin.Context) {
	st := s.backend.Status()
	c.JSON(http.StatusOK, statusResponse{Status: st, Degraded: st.Degraded()})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

// intQuery reads an optional non-negative integer query parameter. An
// absent parameter yields 0. On a bad value it answers 400 and reports false.
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: key + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}
