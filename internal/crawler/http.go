package crawler

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent is sent by NewHTTPClient when the request carries none
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// LoggingTransport logs every round trip with its duration and status
type LoggingTransport struct {
	Base      http.RoundTripper
	Logger    *zap.Logger
	UserAgent string
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.UserAgent)
	}

	initialTime := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(initialTime)

	logger := t.Logger
	if logger == nil {
		return resp, err
	}
	if err != nil {
		logger.Debug("http",
			zap.Int64("time_ms", elapsed.Milliseconds()),
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return resp, err
	}
	logger.Debug("http",
		zap.Int64("time_ms", elapsed.Milliseconds()),
		zap.Int("status", resp.StatusCode),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()))
	return resp, nil
}

// NewHTTPClient returns a client with a timeout and request logging
func NewHTTPClient(timeout time.Duration, logger *zap.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &LoggingTransport{
			Logger:    logger,
			UserAgent: DefaultUserAgent,
		},
	}
}
