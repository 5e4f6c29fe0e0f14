package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/config"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

const fixtureYAML = `
tasks:
  - name: demand-hourly
    past_time:
      - { timestamp: "2024-01-01 00:00:00", value: 10.5 }
      - { timestamp: "2024-01-01 01:00:00", value: 11.0 }
    future_time:
      - "2024-01-01 02:00:00"
      - "2024-01-01 03:00:00"
  - name: demand-daily
    past_time:
      - { timestamp: "2024-01-01 00:00:00", value: 100 }
    future_time:
      - "2024-01-02 00:00:00"
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))
	return path
}

func TestForecastCommand(t *testing.T) {
	body := "<forecast>\n(2024-01-01 02:00:00, 11.5)\n(2024-01-01 03:00:00, 12.0)\n</forecast>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			N int `json:"n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		choices := make([]map[string]any, req.N)
		for i := range choices {
			choices[i] = map[string]any{"message": map[string]any{"content": body}}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 100, "completion_tokens": 40},
		})
	}))
	defer server.Close()

	cfg = config.Default()
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = server.URL
	logger = zap.NewNop()

	cmd := newForecastCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--tasks", writeFixture(t), "--task", "demand-hourly", "--samples", "5"})
	require.NoError(t, cmd.Execute())

	var printed forecastOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "demand-hourly", printed.Task)
	require.Len(t, printed.Samples, 5)
	require.Len(t, printed.Samples[0], 2)
	assert.Equal(t, 11.5, printed.Samples[0][0][0])
	assert.Equal(t, 100, printed.InputTokens)
	assert.Equal(t, 40, printed.OutputTokens)
}

func TestForecastCommandRequiresTasks(t *testing.T) {
	cfg = config.Default()
	logger = zap.NewNop()

	cmd := newForecastCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

func TestSelectInstance(t *testing.T) {
	instances := []*task.Instance{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	}

	got, err := selectInstance(instances, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	got, err = selectInstance(instances, "", 2)
	require.NoError(t, err)
	assert.Equal(t, "c", got.Name)

	_, err = selectInstance(instances, "missing", 0)
	assert.Error(t, err)

	_, err = selectInstance(instances, "", 3)
	assert.Error(t, err)
	_, err = selectInstance(instances, "", -1)
	assert.Error(t, err)
}
