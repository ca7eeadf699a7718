package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestLoggerLevelsByStatus(t *testing.T) {
	logger, logs := observedLogger()

	r := gin.New()
	r.Use(TraceID(), Logger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestLoggerRecordsRequestFields(t *testing.T) {
	logger, logs := observedLogger()

	r := gin.New()
	r.Use(TraceID(), Logger(logger))
	r.GET("/trees", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trees?limit=5", nil))

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/trees", fields["path"])
	assert.Equal(t, "limit=5", fields["query"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.NotEmpty(t, fields["trace_id"])
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	logger, logs := observedLogger()

	r := gin.New()
	r.Use(TraceID(), Recovery(logger))
	r.GET("/boom", func(c *gin.Context) { panic("tick loop exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "tick loop exploded", entries[0].ContextMap()["panic"])
}

func TestRecoveryLeavesHealthyRequestsAlone(t *testing.T) {
	logger, _ := observedLogger()

	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/fine", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fine", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
