package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	app "inspection-brain/internal/application"
	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// Scanner принимает ручные запросы на скан
type Scanner interface {
	Submit(ctx context.Context, req entity.ScanRequest) error
	Busy() bool
}

// TriggerView текущее состояние автомата триггера
type TriggerView interface {
	Snapshot() entity.TriggerSnapshot
}

// Deps зависимости HTTP сервера
type Deps struct {
	Scanner Scanner
	Trigger TriggerView
	Status  port.StatusRepository
	Events  http.Handler // WebSocket поток событий, может быть nil
	Logger  *slog.Logger
}

type Server struct {
	deps   Deps
	router *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	s := &Server{
		deps:   deps,
		router: router,
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/trigger-scan", s.triggerScan)
	s.router.GET("/status", s.status)
	if s.deps.Events != nil {
		s.router.GET("/ws", gin.WrapH(s.deps.Events))
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":               "route not found",
			"available_endpoints": []string{"GET /healthz", "POST /trigger-scan", "GET /status", "GET /ws"},
		})
	})
}

// Handler нужен тестам и для встраивания.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает адрес до Shutdown.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type triggerScanRequest struct {
	WeightGrams *float64 `json:"weight_grams" binding:"required,gt=0"`
}

func (s *Server) triggerScan(c *gin.Context) {
	var body triggerScanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "error": err.Error()})
		return
	}

	req, err := entity.NewScanRequest(*body.WeightGrams, entity.SourceManual, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "error": err.Error()})
		return
	}

	if err := s.deps.Scanner.Submit(c.Request.Context(), req); err != nil {
		if app.IsRejected(err) {
			c.JSON(http.StatusConflict, gin.H{"status": "rejected", "reason": app.RejectReason(err)})
			return
		}
		s.logger.Error("manual scan submit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	s.logger.Info("manual scan accepted", "weight", req.WeightGrams)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) status(c *gin.Context) {
	stats, err := s.deps.Status.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trigger": s.deps.Trigger.Snapshot(),
		"busy":    s.deps.Scanner.Busy(),
		"scans":   stats,
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
