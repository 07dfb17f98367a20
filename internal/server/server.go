package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"InventoryChat/internal/chatbot"
)

//go:embed web/index.html
var indexHTML []byte

// Chatter is the part of the ChatBot the HTTP layer depends on
type Chatter interface {
	Handle(ctx context.Context, sessionID, message string) chatbot.ChatResult
	Status() chatbot.Status
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes a ChatBot over HTTP
type Server struct {
	bot    Chatter
	logger *slog.Logger
	engine *gin.Engine
}

// New creates the router and registers every route
func New(bot Chatter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		bot:    bot,
		logger: logger,
		engine: gin.New(),
	}

	s.engine.Use(requestIDMiddleware())
	s.engine.Use(loggingMiddleware(logger))
	s.engine.Use(metricsMiddleware())
	s.engine.Use(recoveryMiddleware(logger))
	s.engine.Use(corsMiddleware())

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/index.html", s.handleIndex)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/chat", s.handleChat)
		api.GET("/ws", s.handleWebSocket)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Not found"})
	})

	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.bot.Status()
	c.JSON(http.StatusOK, StatusResponse{
		Status:   "running",
		Provider: string(st.Provider),
		Model:    st.Model,
	})
}

// handleChat answers with 200 for every exchange that reached the
// ChatBot, including failed ones; the result's status tells them apart
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "session_id and message are required"})
		return
	}

	res := s.bot.Handle(c.Request.Context(), req.SessionID, req.Message)
	observeChat(res)

	c.JSON(http.StatusOK, res)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("server exited")
	return nil
}
