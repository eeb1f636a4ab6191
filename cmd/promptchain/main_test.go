package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFormatError(t *testing.T) {
	stageErr := &chain.ChainError{
		Stage: chain.StageTransform,
		Err:   &llm.ModelError{Provider: "raw", StatusCode: 404, Message: "no such model"},
	}
	assert.Equal(t, "error: model at stage transform: raw: model error (status 404): no such model", formatError(stageErr))

	_, cfgErr := llm.NormalizeProvider("framework-z")
	assert.Equal(t, "error: config: unknown approach: framework-z", formatError(cfgErr))

	assert.Equal(t, "error: boom", formatError(errors.New("boom")))
}

func TestEnvVerbose(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", " Yes "} {
		t.Setenv("VERBOSE", v)
		assert.True(t, envVerbose(), "VERBOSE=%q", v)
	}
	for _, v := range []string{"", "0", "false", "no", "on"} {
		t.Setenv("VERBOSE", v)
		assert.False(t, envVerbose(), "VERBOSE=%q", v)
	}
}

func TestReadInputs(t *testing.T) {
	inputs, err := readInputs(strings.NewReader("first line\n\n   \n second line \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line"}, inputs)
}

func TestRunBatch_OrderAndErrors(t *testing.T) {
	inputs := []string{"a", "bad", "c", "d"}
	results := runBatch(context.Background(), inputs, 2, func(ctx context.Context, input string) (specs.Record, error) {
		if input == "bad" {
			return specs.Record{}, &chain.ChainError{
				Stage: chain.StageValidate,
				Err:   &specs.ValidationError{Reason: specs.ReasonMalformed},
			}
		}
		return specs.Record{CPU: "cpu-" + input, Memory: "m", Storage: "s"}, nil
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, inputs[i], r.Input)
	}
	assert.Equal(t, "cpu-a", results[0].Result.CPU)
	assert.Nil(t, results[1].Result)
	assert.Equal(t, chain.KindValidation, results[1].Kind)
	assert.Equal(t, chain.StageValidate, results[1].Stage)
	assert.Equal(t, "cpu-d", results[3].Result.CPU)
	assert.Equal(t, 1, countFailed(results))
}

func TestRunBatch_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	inputs := make([]string, 12)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("input-%d", i)
	}

	results := runBatch(context.Background(), inputs, 3, func(ctx context.Context, input string) (specs.Record, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return specs.Record{CPU: input}, nil
	})

	assert.Len(t, results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 0, countFailed(results))
}

func TestRunChat(t *testing.T) {
	in := strings.NewReader("hello\n\nfail\nquit\nnever sent\n")
	var out, errOut bytes.Buffer
	var sent []string

	err := runChat(context.Background(), in, &out, &errOut, func(ctx context.Context, message string) (string, error) {
		sent = append(sent, message)
		if message == "fail" {
			return "", &llm.TransportError{Provider: "raw", Err: errors.New("refused")}
		}
		return "  Hi!  ", nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "fail"}, sent)
	assert.Contains(t, out.String(), "Assistant: Hi!\n")
	assert.Contains(t, errOut.String(), "error: transport")
}

func TestRunChat_EOF(t *testing.T) {
	var out, errOut bytes.Buffer
	calls := 0
	err := runChat(context.Background(), strings.NewReader("one"), &out, &errOut, func(ctx context.Context, message string) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "raw", cfg.LLM.Provider)
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider: framework-a
  model: file-model
  temperature: 0.2
prompts:
  extract: "Specs please: {{.text_input}}"
database:
  enabled: true
  path: ` + filepath.Join(dir, "h.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("PC_LLM_MODEL", "env-model")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "framework-a", cfg.LLM.Provider)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "Specs please: {{.text_input}}", cfg.Prompts.Extract)
	assert.True(t, cfg.Database.Enabled)
}

func TestLoadConfig_UnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PC_LLM_PROVIDER", "framework-z")

	_, err := loadConfig("")
	assert.ErrorIs(t, err, llm.ErrUnknownApproach)
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "PromptChain "+Version)
}

func TestRootCmd_UnknownApproach(t *testing.T) {
	t.Chdir(t.TempDir())
	cfgFile = ""

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--approach", "framework-z"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, chain.KindConfig, chain.Kind(err))
	assert.NotContains(t, out.String(), "Running prompt chaining")
}
