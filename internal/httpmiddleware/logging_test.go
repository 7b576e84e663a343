package httpmiddleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"studynotion/internal/logging"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(level, " ", msg, " ", args))
}

func (l *captureLogger) Info(_ context.Context, msg string, args ...any)  { l.add("INFO", msg, args...) }
func (l *captureLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("WARN", msg, args...) }
func (l *captureLogger) Error(_ context.Context, msg string, args ...any) { l.add("ERROR", msg, args...) }
func (l *captureLogger) With(...any) logging.Logger                       { return l }

func TestRequestLoggerSkipsPathsAndSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := &captureLogger{}
	r := gin.New()
	r.Use(RequestLogger(log, "/healthz"), SecurityHeaders())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, log.lines)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	if assert.Len(t, log.lines, 1) {
		assert.Contains(t, log.lines[0], "WARN request")
		assert.Contains(t, log.lines[0], "req-42")
	}
}
