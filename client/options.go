package client

import (
	"log/slog"
	"net/http"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Streaming calls hold
// the connection open, so the client must not carry an overall Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithIdentity sets the principal forwarded on every request.
func WithIdentity(userID, userName string) Option {
	return func(c *Client) {
		c.userID = userID
		c.userName = userName
	}
}

// WithElevated marks the forwarded principal as elevated. Elevated
// callers may act on jobs they do not own and request model overrides.
func WithElevated() Option {
	return func(c *Client) { c.elevated = true }
}

// WithLogger sets the logger used for stream-side warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
