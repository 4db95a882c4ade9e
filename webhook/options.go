package webhook

import (
	"log/slog"
	"net/http"
)

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom event payload for a specific event type.
// The args parameter contains the default payload and the returned
// value becomes the envelope's data field.
type PayloadFunc func(args any) (any, error)

// WithEvents restricts the extension to emit only the listed event types.
// By default only completion and terminal-failure events are enabled.
// Unknown types are silently ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithAllEvents enables every lifecycle event type.
func WithAllEvents() Option {
	return WithEvents(
		EventJobEnqueued,
		EventJobStarted,
		EventJobCompleted,
		EventJobFailed,
		EventJobRetrying,
		EventJobCancelled,
		EventDocumentSaved,
	)
}

// WithPayloadFunc registers a custom payload builder for the given event
// type. The function replaces the default JSON payload for that event.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}

// WithSecret enables HMAC-SHA256 signing of request bodies. The hex
// signature is sent in the X-Docpipe-Signature header.
func WithSecret(secret string) Option {
	return func(h *Extension) { h.secret = []byte(secret) }
}

// WithHTTPClient sets a custom HTTP client for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Extension) { h.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Extension) { h.logger = l }
}
