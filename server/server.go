// Package server exposes back-translation and the translation memory over
// HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/cache"
)

// StatusClientClosedRequest is reported when the caller went away before
// the back-translation finished.
const StatusClientClosedRequest = 499

// Server serves the HTTP API.
type Server struct {
	translator backtrans.BackTranslator
	memory     cache.TranslationCache
	defaults   backtrans.BatchOptions
	logger     *slog.Logger
	engine     *gin.Engine
}

// Config holds the collaborators of a Server.
type Config struct {
	Translator backtrans.BackTranslator
	Memory     cache.TranslationCache // optional; memory routes answer 503 without it
	Defaults   backtrans.BatchOptions // languages and provider used when a request omits them
	Logger     *slog.Logger
}

// New builds a Server and its routes.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := cfg.Defaults
	if defaults.IntermediateLang == "" {
		defaults.IntermediateLang = backtrans.DefaultBatchOptions().IntermediateLang
	}

	s := &Server{
		translator: cfg.Translator,
		memory:     cfg.Memory,
		defaults:   defaults,
		logger:     logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/backtranslate", s.handleBackTranslate)
	api.GET("/memory/stats", s.handleMemoryStats)
	api.GET("/memory/search", s.handleMemorySearch)
	api.DELETE("/memory", s.handleMemoryClear)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": backtrans.Version})
}

// BackTranslateRequest is the body of POST /api/backtranslate.
type BackTranslateRequest struct {
	Text                 string `json:"text"`
	SourceLanguage       string `json:"source_language"`
	IntermediateLanguage string `json:"intermediate_language"`
	Provider             string `json:"provider"`
}

// BackTranslateResponse is the result plus its fidelity report.
type BackTranslateResponse struct {
	*backtrans.BackTranslationResult
	Fidelity *backtrans.FidelityReport `json:"fidelity"`
}

func (s *Server) handleBackTranslate(c *gin.Context) {
	var req BackTranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	intermediate := req.IntermediateLanguage
	if strings.TrimSpace(intermediate) == "" {
		intermediate = s.defaults.IntermediateLang
	}
	provider := s.defaults.Provider
	if req.Provider != "" {
		provider = backtrans.NormalizeProviderID(req.Provider)
	}

	result, err := s.translator.BackTranslate(c.Request.Context(), backtrans.BackTranslateRequest{
		Text:             req.Text,
		SourceLang:       req.SourceLanguage,
		IntermediateLang: intermediate,
		Provider:         provider,
	}, nil)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, BackTranslateResponse{
		BackTranslationResult: result,
		Fidelity:              backtrans.CompareFidelity(result.OriginalText, result.BackTranslatedText),
	})
}

func (s *Server) handleMemoryStats(c *gin.Context) {
	if !s.requireMemory(c) {
		return
	}
	stats, err := s.memory.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleMemorySearch(c *gin.Context) {
	if !s.requireMemory(c) {
		return
	}

	limit := cache.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	entries, err := s.memory.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) handleMemoryClear(c *gin.Context) {
	if !s.requireMemory(c) {
		return
	}
	if err := s.memory.Clear(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) requireMemory(c *gin.Context) bool {
	if s.memory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "translation memory is disabled"})
		return false
	}
	return true
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	body := gin.H{"error": err.Error()}
	if kind := backtrans.KindOf(err); kind != 0 {
		body["kind"] = kind.String()
	}
	c.JSON(status, body)
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	var storageErr *cache.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusInternalServerError
	}

	switch backtrans.KindOf(err) {
	case backtrans.KindInvalidInput:
		return http.StatusBadRequest
	case backtrans.KindRateLimited:
		return http.StatusTooManyRequests
	case backtrans.KindBlocked:
		return http.StatusForbidden
	case backtrans.KindInvalidResponse:
		return http.StatusBadGateway
	case backtrans.KindNetwork:
		return http.StatusServiceUnavailable
	case backtrans.KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
