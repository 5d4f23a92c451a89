// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jeranaias/ragchat/internal/logging"
)

// DefaultPrefix is the route prefix the service mounts its API under.
const DefaultPrefix = "/api/v1"

// DefaultHistoryLimit is how many conversations the list endpoint returns.
const DefaultHistoryLimit = 5

// Config configures the dev server. Zero values select defaults.
type Config struct {
	// Prefix is the API route prefix (default: /api/v1)
	Prefix string

	// HistoryLimit caps the recent-conversation list (default: 5)
	HistoryLimit int

	// Answerer generates replies (default: KeywordAnswerer)
	Answerer Answerer

	// TokenDelay is slept between streamed increments.
	TokenDelay time.Duration

	// Now supplies timestamps (default: time.Now in UTC)
	Now func() time.Time
}

// Server is an in-memory chat service.
type Server struct {
	cfg           Config
	engine        *gin.Engine
	conversations *conversationStore
	documents     *documentStore
	log           zerolog.Logger
}

// New creates a server with its routes registered.
func New(cfg Config) *Server {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Answerer == nil {
		cfg.Answerer = KeywordAnswerer{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:           cfg,
		engine:        gin.New(),
		conversations: newConversationStore(cfg.Now),
		documents:     newDocumentStore(cfg.Now),
		log:           logging.For("devserver"),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group(s.cfg.Prefix)

	api.GET("/health/", s.health)

	conversations := api.Group("/conversations")
	conversations.GET("/", s.listConversations)
	conversations.POST("/", s.createConversation)
	conversations.GET("/:id", s.getConversation)
	conversations.PATCH("/:id", s.renameConversation)
	conversations.DELETE("/:id", s.deleteConversation)

	chat := api.Group("/chat")
	chat.POST("/respond", s.respond)
	chat.POST("/stream", s.stream)

	documents := api.Group("/documents")
	documents.GET("/", s.listDocuments)
	documents.POST("/", s.uploadDocument)
	documents.GET("/:id", s.getDocument)
	documents.PUT("/:id", s.updateDocument)
	documents.DELETE("/:id", s.deleteDocument)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("prefix", s.cfg.Prefix).Msg("dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestLogger logs every request and echoes its request id.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if id := c.GetHeader("X-Request-ID"); id != "" {
			c.Header("X-Request-ID", id)
		}
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Msg("request")
	}
}

// detail writes the service's error body.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
