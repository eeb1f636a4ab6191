package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/history"
	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/llm/llmtest"
	"github.com/KodaTao/PromptChain/pkg/prompt"
	"github.com/KodaTao/PromptChain/pkg/storage"
)

const (
	bullets    = "- CPU: 3.5 GHz octa-core\n- Memory: 16GB\n- Storage: 1TB NVMe SSD"
	recordJSON = `{"cpu":"3.5 GHz octa-core","memory":"16GB","storage":"1TB NVMe SSD"}`
)

// setupTestApp 创建使用内存数据库并启用指标的 App
func setupTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithDatabasePath(storage.MemoryPath),
		WithMetrics(""),
		WithLogLevel("error"),
	}, opts...)

	a := New(opts...)
	require.NoError(t, a.Initialize())
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestApp_Run_RecordsHistoryAndMetrics(t *testing.T) {
	a := setupTestApp(t)
	p := llmtest.Texts(bullets, recordJSON)
	require.NoError(t, a.UseProvider("raw", p))

	record, err := a.Run(context.Background(), "", "laptop text", a.GetConfig().ChainConfig())
	require.NoError(t, err)
	assert.Equal(t, "1TB NVMe SSD", record.Storage)

	runs, err := a.History().List(nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusOK, runs[0].Status)
	assert.Equal(t, "mock", runs[0].Approach)
	assert.Equal(t, llm.DefaultModel, runs[0].Model)
	assert.NotEmpty(t, runs[0].RunID)
	// 中间结果不落库
	assert.NotContains(t, runs[0].Output, "- CPU")

	count, err := testutil.GatherAndCount(a.Metrics().Registry(), "promptchain_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// geminiStub 模拟会替换默认模型的后端
type geminiStub struct {
	*llmtest.Provider
}

func (g geminiStub) ResolveModel(requested string) string {
	if requested == "" || requested == llm.DefaultModel {
		return "gemini-2.0-flash"
	}
	return requested
}

func TestApp_Run_RecordsResolvedModel(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.UseProvider("genai", geminiStub{llmtest.Texts(bullets, recordJSON)}))

	_, err := a.Run(context.Background(), "genai", "laptop text", a.GetConfig().ChainConfig())
	require.NoError(t, err)

	runs, err := a.History().List(nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "gemini-2.0-flash", runs[0].Model)
}

func TestApp_Run_RecordsFailure(t *testing.T) {
	a := setupTestApp(t)
	p := llmtest.New(llmtest.Reply{Err: &llm.TransportError{Provider: "mock", Err: errors.New("refused")}})
	require.NoError(t, a.UseProvider("framework-a", p))

	_, err := a.Run(context.Background(), "openai", "laptop text", chain.Config{})
	require.Error(t, err)

	failed := history.StatusFailed
	runs, err := a.History().List(&failed, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "extract", runs[0].Stage)
	assert.Equal(t, "transport", runs[0].ErrorKind)
}

func TestApp_Executor_UnknownApproach(t *testing.T) {
	a := setupTestApp(t)

	_, err := a.Executor(context.Background(), "framework-z")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrUnknownApproach))
	assert.Equal(t, chain.KindConfig, chain.Kind(err))
}

func TestApp_Executor_Cached(t *testing.T) {
	a := setupTestApp(t)

	e1, err := a.Executor(context.Background(), "raw")
	require.NoError(t, err)
	e2, err := a.Executor(context.Background(), "")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, "raw", e1.Provider().Name())
}

func TestApp_Executor_GenAIRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	a := setupTestApp(t)

	_, err := a.Executor(context.Background(), "genai")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestApp_Chat(t *testing.T) {
	a := setupTestApp(t)
	p := llmtest.Texts("Hello there!")
	require.NoError(t, a.UseProvider("raw", p))

	reply, err := a.Chat(context.Background(), "", "hi", chain.Config{Temperature: 0.2, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	req := p.Requests()[0]
	assert.Equal(t, "hi", req.Prompt)
	assert.Nil(t, req.Schema)
	assert.Equal(t, 0.2, req.Temperature)
}

func TestApp_CustomPrompts(t *testing.T) {
	a := New(WithLogLevel("error"))
	a.GetConfig().Prompts.Extract = "Pull specs from: {{.text}}"
	require.NoError(t, a.Initialize())

	p := llmtest.Texts(bullets, recordJSON)
	require.NoError(t, a.UseProvider("raw", p))

	_, err := a.Run(context.Background(), "raw", "laptop", chain.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Pull specs from: laptop", p.Requests()[0].Prompt)
	assert.Nil(t, a.History())
	assert.Nil(t, a.Metrics())
}

func TestApp_InvalidPrompt(t *testing.T) {
	a := New(WithLogLevel("error"))
	a.GetConfig().Prompts.Transform = "no placeholder here"

	err := a.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompt.ErrPlaceholderCount))
}

func TestNewProvider_Backends(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := llm.DefaultConfig()
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "raw", p.Name())
	assert.False(t, llm.SupportsSchema(p))

	cfg.Provider = "langchain"
	p, err = NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.True(t, llm.SupportsSchema(p))

	cfg.Provider = "adk"
	cfg.APIKey = "gemini-key"
	p, err = NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "genai", p.Name())
}

func TestNewProvider_RateLimited(t *testing.T) {
	cfg := llm.DefaultConfig()
	cfg.RateLimit = 5
	cfg.Burst = 2

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, ok := p.(*llm.RateLimited)
	assert.True(t, ok)
	assert.Equal(t, "raw", p.Name())
}

func TestNewProvider_FillsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := llm.Config{Provider: "raw", Timeout: 5}

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultModel, llm.ResolveModel(p, ""))
}

func TestNewProvider_InvalidTemperature(t *testing.T) {
	cfg := llm.DefaultConfig()
	cfg.Temperature = 3

	_, err := NewProvider(context.Background(), cfg)
	assert.ErrorIs(t, err, llm.ErrInvalidTemperature)
}

func TestConfig_ChainConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Temperature = 0.4
	cfg.LLM.Timeout = 30
	cfg.LLM.MaxTokens = 256

	cc := cfg.ChainConfig()
	assert.Empty(t, cc.Model)
	assert.Equal(t, 0.4, cc.Temperature)
	assert.Equal(t, 30*time.Second, cc.Timeout)
	assert.Equal(t, 256, cc.MaxTokens)
	assert.False(t, cc.Verbose)

	cfg.LLM.Timeout = 0
	assert.Equal(t, chain.DefaultConfig().Timeout, cfg.ChainConfig().Timeout)
}
