package service

import (
	"strings"

	"menurag/internal/logging"
)

// DefaultCurrency is printed after prices in rendered context.
const DefaultCurrency = "VND"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. A nil logger discards output.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCurrency sets the currency label used by RenderContext.
func WithCurrency(c string) Option {
	return func(e *Engine) {
		if c = strings.TrimSpace(c); c != "" {
			e.currency = c
		}
	}
}
