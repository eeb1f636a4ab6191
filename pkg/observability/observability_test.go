package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("unknown"))
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunID(ctx))

	ctx = WithRunID(ctx, "abc")
	assert.Equal(t, "abc", RunID(ctx))
}

func TestInitLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path}))
	t.Cleanup(func() {
		_ = InitLogger(LogConfig{Level: "error"})
	})

	InfoContext(WithRunID(context.Background(), "run-9"), "hello", "k", "v")
	assert.FileExists(t, path)
}

func TestMetrics_StageObserver(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.OnStageStart(ctx, "extract")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageInFlight.WithLabelValues("extract")))

	m.OnStageEnd(ctx, "extract", 10*time.Millisecond, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stageInFlight.WithLabelValues("extract")))

	m.OnStageStart(ctx, "validate")
	m.OnStageEnd(ctx, "validate", time.Millisecond, errors.New("bad"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("raw", nil)
	m.ObserveRun("raw", nil)
	m.ObserveRun("openai", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("raw", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("openai", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("genai", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `promptchain_runs_total{approach="genai",status="ok"} 1`))
}
