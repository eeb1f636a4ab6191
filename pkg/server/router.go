// Package server 提供 HTTP Server 功能
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KodaTao/PromptChain/pkg/app"
	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/history"
	"github.com/KodaTao/PromptChain/pkg/observability"
)

// Server HTTP 服务器
type Server struct {
	app    *app.App
	engine *gin.Engine
	config *ServerConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string
	Port int
	Mode string // debug, release, test
}

// NewServer 创建 HTTP 服务器
func NewServer(a *app.App, config *ServerConfig) *Server {
	// 设置 Gin 模式
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	// 添加中间件
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware())
	engine.Use(CORSMiddleware())

	server := &Server{
		app:    a,
		engine: engine,
		config: config,
	}

	// 注册路由
	server.setupRoutes()

	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 健康检查
	s.engine.GET("/health", s.healthCheck)

	// 指标
	if m := s.app.Metrics(); m != nil {
		s.engine.GET(s.app.GetConfig().Observability.Metrics.Path, gin.WrapH(m.Handler()))
	}

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 链路执行
		v1.POST("/chain", s.runChain)

		// 执行历史
		runs := v1.Group("/runs", s.requireHistory)
		runs.GET("", s.listRuns)
		runs.GET("/:run_id", s.getRun)
	}
}

// Run 启动服务器，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Info("Starting HTTP server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		observability.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// GetEngine 获取 Gin 引擎（用于测试）
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}

// 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// ChainRequest 链路执行请求
type ChainRequest struct {
	Input       string   `json:"input"`
	Approach    string   `json:"approach,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Verbose     bool     `json:"verbose,omitempty"`
}

// 链路执行
func (s *Server) runChain(c *gin.Context) {
	var req ChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
			"kind":  chain.KindInput,
		})
		return
	}

	if strings.TrimSpace(req.Input) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "input is required",
			"kind":  chain.KindInput,
		})
		return
	}

	cfg := s.app.GetConfig().ChainConfig()
	cfg.Model = req.Model
	cfg.Verbose = req.Verbose
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}

	record, err := s.app.Run(c.Request.Context(), req.Approach, req.Input, cfg)
	if err != nil {
		kind := chain.Kind(err)
		observability.Warn("Chain request failed", "kind", kind, "error", err)
		c.JSON(StatusFor(kind), gin.H{
			"error": err.Error(),
			"kind":  kind,
			"stage": chain.StageOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// StatusFor 错误分类到 HTTP 状态码的映射
func StatusFor(kind chain.ErrorKind) int {
	switch kind {
	case chain.KindInput, chain.KindConfig:
		return http.StatusBadRequest
	case chain.KindValidation:
		return http.StatusUnprocessableEntity
	case chain.KindModel:
		return http.StatusBadGateway
	case chain.KindTransport:
		return http.StatusServiceUnavailable
	case chain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requireHistory 未启用执行历史时返回 404
func (s *Server) requireHistory(c *gin.Context) {
	if s.app.History() == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": "run history is disabled",
		})
		return
	}
	c.Next()
}

// 列出执行历史
func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	var status *history.RunStatus
	if q := c.Query("status"); q != "" {
		st := history.RunStatus(q)
		if st != history.StatusOK && st != history.StatusFailed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + q})
			return
		}
		status = &st
	}

	repo := s.app.History()
	runs, err := repo.List(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := repo.Count(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
		"total": total,
	})
}

// 获取单条执行记录
func (s *Server) getRun(c *gin.Context) {
	id := c.Param("run_id")

	run, err := s.app.History().GetByRunID(id)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Run not found: " + id,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		observability.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
