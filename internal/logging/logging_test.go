package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mono-ai/aiproxy/internal/config"
	log "github.com/sirupsen/logrus"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	level := log.GetLevel()
	t.Cleanup(func() {
		log.SetLevel(level)
		log.SetOutput(os.Stderr)
		log.SetFormatter(&log.TextFormatter{})
	})
}

func TestSetupAppliesLevelAndFile(t *testing.T) {
	restoreLogger(t)
	file := filepath.Join(t.TempDir(), "logs", "aiproxy.log")
	if err := Setup(config.LogConfig{Level: "debug", Format: "json", File: file, MaxSizeMB: 1}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %s", log.GetLevel())
	}
	log.Info("hello file")
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello file"`) {
		t.Fatalf("log file content = %q", data)
	}
}

func TestSetupRejectsBadValues(t *testing.T) {
	restoreLogger(t)
	if err := Setup(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if err := Setup(config.LogConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestRequestIDAndGinLogger(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.InfoLevel)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), GinLogger())
	var seen string
	router.GET("/v1/models", func(c *gin.Context) {
		seen = GetGinRequestID(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/models?key=sk-1234567890abcdef", nil)
	req.Header.Set("Authorization", "Bearer sk-abcdefghijklmnop")
	router.ServeHTTP(rec, req)

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}
	out := buf.String()
	if strings.Contains(out, "sk-1234567890abcdef") {
		t.Fatalf("secret leaked into log: %s", out)
	}
	if strings.Contains(out, "sk-abcdefghijklmnop") {
		t.Fatalf("authorization leaked into log: %s", out)
	}
	if !strings.Contains(out, "Bearer sk-a...mnop") {
		t.Fatalf("log line missing masked authorization: %s", out)
	}
	if !strings.Contains(out, seen) {
		t.Fatalf("log line missing request id: %s", out)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	router.ServeHTTP(rec, req)
	if seen != "client-id" {
		t.Fatalf("inbound request id ignored, got %q", seen)
	}
}
