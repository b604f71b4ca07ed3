package meme

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/k1LoW/meme/version"
)

var _ retryablehttp.LeveledLogger = (*slog.Logger)(nil)

var userAgent = "k1LoW-meme/" + version.Version + " (+https://github.com/k1LoW/meme)"

var defaultHTTPClient = sync.OnceValue(func() *http.Client {
	return newHTTPClient(slog.Default())
})

// newHTTPClient returns a client that retries transient failures while fetching remote images.
func newHTTPClient(l *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = newFetchLogger(l)
	c := retryClient.StandardClient()
	c.Timeout = 30 * time.Second
	return c
}

var _ retryablehttp.LeveledLogger = (*fetchLogger)(nil)

type fetchLogger struct {
	l *slog.Logger
}

func (l *fetchLogger) Error(msg string, keysAndValues ...any) {
	l.l.Error(msg, append([]any{slog.String("original_log_level", "error")}, keysAndValues...)...)
}
func (l *fetchLogger) Info(msg string, keysAndValues ...any) {
	l.l.Info(msg, append([]any{slog.String("original_log_level", "info")}, keysAndValues...)...)
}
func (l *fetchLogger) Debug(msg string, keysAndValues ...any) {
	if strings.HasPrefix(msg, "retrying") {
		// Promoted to info so the console handler can show a spinner
		l.l.Info(msg, append([]any{slog.String("original_log_level", "debug")}, keysAndValues...)...)
		return
	}
	l.l.Debug(msg, append([]any{slog.String("original_log_level", "debug")}, keysAndValues...)...)
}
func (l *fetchLogger) Warn(msg string, keysAndValues ...any) {
	l.l.Warn(msg, append([]any{slog.String("original_log_level", "warn")}, keysAndValues...)...)
}

func newFetchLogger(l *slog.Logger) retryablehttp.LeveledLogger {
	return &fetchLogger{
		l: l.WithGroup("fetch"),
	}
}
