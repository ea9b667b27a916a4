package server

import (
	"log/slog"
	"net/http"

	"github.com/sig-0/ibkrrates/server/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithMetrics specifies the handler served at /metrics
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}
