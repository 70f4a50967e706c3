package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackwell-systems/tabprune/internal/metrics"
)

// PlaceholderPath is where the placeholder page is served.
const PlaceholderPath = "/suspended"

const shutdownTimeout = 5 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

// Server wraps the HTTP server and its router.
type Server struct {
	addr       string
	router     *gin.Engine
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewServer builds the router. Call Run to serve on addr.
func NewServer(addr string, d *Dispatcher, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		addr:       addr,
		router:     router,
		dispatcher: d,
		metrics:    m,
		logger:     logger,
	}

	router.GET("/healthz", s.health)
	router.GET(PlaceholderPath, s.placeholder)
	router.POST("/api/message", s.message)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) placeholder(c *gin.Context) {
	c.HTML(http.StatusOK, "suspended.html", gin.H{
		"URL":   c.Query("url"),
		"Title": c.Query("title"),
	})
}

func (s *Server) message(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message: " + err.Error()})
		return
	}

	resp, err := s.dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		var unknown *UnknownActionError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: unknown.Error()})
			return
		}
		s.logger.Error("message failed", zap.String("action", req.Action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// requestLogger logs each request at debug level.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
