// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/config"
	"github.com/meaningapp/meaning/internal/extract"
	"github.com/meaningapp/meaning/internal/home"
	"github.com/meaningapp/meaning/internal/notes"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Extractor *extract.Pool
	NoteStore notes.Store
	Tokens    *auth.Tokens
	Config    *config.Manager
	Logger    *slog.Logger
	Home      *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ExtractorFrom extracts the extraction pool from context.
func ExtractorFrom(ctx context.Context) *extract.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Extractor
	}
	return nil
}

// NoteStoreFrom extracts the note store from context.
func NoteStoreFrom(ctx context.Context) notes.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.NoteStore
	}
	return nil
}

// TokensFrom extracts the token verifier from context.
func TokensFrom(ctx context.Context) *auth.Tokens {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tokens
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
// Falls back to slog.Default so handlers can always log.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
