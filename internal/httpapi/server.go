// Package httpapi exposes the analysis pipeline over a JSON HTTP API for web
// and mobile clients. Requests are authenticated with HS256 bearer tokens
// whose subject is the user ID.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Services are the domain components the API serves.
type Services struct {
	Guard       *entitlement.Guard
	Analyzer    *analysis.Orchestrator
	Ingredients *analysis.IngredientOrchestrator
	FollowUps   *followup.Manager
	History     *analysis.History
}

// Options configures the HTTP surface.
type Options struct {
	Addr          string
	JWTSecret     []byte
	CORSOrigins   []string
	MaxImageBytes int64
}

type Server struct {
	svc    Services
	opts   Options
	locks  *analysis.UserLocks
	engine *gin.Engine
}

func New(svc Services, opts Options) *Server {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = imaging.DefaultMaxBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		svc:   svc,
		opts:  opts,
		locks: analysis.NewUserLocks(),
	}
	s.engine = s.router()
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  s.opts.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.Use(authMiddleware(s.opts.JWTSecret))
	{
		v1.POST("/profile", s.handleEnsureProfile)
		v1.GET("/profile", s.handleGetProfile)

		v1.POST("/analyses", s.handleAnalyze)
		v1.GET("/analyses", s.handleListAnalyses)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
		v1.POST("/analyses/:id/suitability", s.handleCheckSuitability)
		v1.POST("/analyses/:id/followup", s.handleFollowUp)

		v1.POST("/ingredients", s.handleReadIngredients)
	}
	return engine
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Err(c.Errors.Last().Err)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("userId", c.GetString(userIDKey)).
			Msg("http request")
	}
}
