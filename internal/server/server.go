package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nubstudio/galeria-backend/internal/auth"
	"github.com/nubstudio/galeria-backend/internal/catalog"
	"github.com/nubstudio/galeria-backend/internal/config"
)

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	httpServer *http.Server
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	CatalogHandler *catalog.Handler
}

func NewServer(p Params) *Server {
	mux := http.NewServeMux()

	p.AuthHandler.RegisterRoutes(mux, p.AuthMiddleware)
	p.CatalogHandler.RegisterRoutes(mux, p.AuthMiddleware)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%s", p.Config.Server.Host, p.Config.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(p.Logger, mux),
		ReadTimeout:  p.Config.Server.ReadTimeout,
		WriteTimeout: p.Config.Server.WriteTimeout,
	}

	return &Server{
		config:     p.Config,
		log:        p.Logger,
		httpServer: httpServer,
	}
}

// requestLogger logs method, path and status for every request. Bodies
// and headers stay out of the log; they carry credentials and codes.
func requestLogger(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddDuration("read_timeout", config.Server.ReadTimeout)
		enc.AddDuration("write_timeout", config.Server.WriteTimeout)
		enc.AddBool("mail_enabled", config.Mail.Enabled)
		return nil
	})
}

func (s *Server) Stop() {
	s.log.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		s.log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
