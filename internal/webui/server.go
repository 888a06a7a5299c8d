// Package webui 提供面向浏览器/脚本的 HTTP 接口。
package webui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wwwzy/CosmoAgent/internal/agent"
	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// Backend 是问答入口。
type Backend interface {
	Ask(ctx context.Context, question string) (*agent.Answer, error)
}

// ToolLister 提供远端工具清单，用于 /api/tools。
type ToolLister interface {
	ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error)
}

// SchemaProvider 提供容器结构描述，用于 /api/schema。
type SchemaProvider interface {
	Schema(ctx context.Context) (string, error)
}

type Server struct {
	cfg     config.WebConfig
	log     *zap.Logger
	backend Backend
	tools   ToolLister
	store   *storage.Storage

	engine *gin.Engine
	httpd  *http.Server
}

func NewServer(cfg config.WebConfig, log *zap.Logger, backend Backend, tools ToolLister, store *storage.Storage) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		log:     log,
		backend: backend,
		tools:   tools,
		store:   store,
		engine:  engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.GET("/history", s.handleHistory)
	api.GET("/tools", s.handleTools)
	api.GET("/schema", s.handleSchema)
}

// Handler 暴露底层 http.Handler，测试用。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 启动 HTTP 服务并随 ctx 取消优雅退出。
func (s *Server) Run(ctx context.Context) error {
	s.httpd = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", zap.String("addr", s.cfg.Listen))
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpd.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	ans, err := s.backend.Ask(c.Request.Context(), req.Question)
	if err != nil {
		s.log.Warn("ask failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage is disabled"})
		return
	}

	q := storage.HistoryQuery{
		Contains: c.Query("q"),
		Desc:     true,
	}
	if limit, ok := intQuery(c, "limit"); ok {
		q.Limit = limit
	}

	entries, err := s.store.QueryHistoryEntries(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleTools(c *gin.Context) {
	tools, err := s.tools.ListTools(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

func (s *Server) handleSchema(c *gin.Context) {
	provider, ok := s.backend.(SchemaProvider)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "schema is not available"})
		return
	}
	schema, err := provider.Schema(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": schema})
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	var v int
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + int(r-'0')
	}
	return v, true
}
