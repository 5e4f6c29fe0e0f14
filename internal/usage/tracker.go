// Package usage persists cumulative token and cost accounting across runs.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenCounts accumulates token totals and spend for one bucket.
type TokenCounts struct {
	Input  int64   `json:"input_tokens"`
	Output int64   `json:"output_tokens"`
	Total  int64   `json:"total_tokens"`
	Cost   float64 `json:"cost"`
}

// Add folds one request's usage into the bucket. Negative costs mark
// models without pricing and are not accumulated.
func (c *TokenCounts) Add(input, output int, cost float64) {
	c.Input += int64(input)
	c.Output += int64(output)
	c.Total += int64(input + output)
	if cost > 0 {
		c.Cost += cost
	}
}

// Data is the on-disk shape of the usage file.
type Data struct {
	Version int                     `json:"version"`
	Total   TokenCounts             `json:"total"`
	ByModel map[string]*TokenCounts `json:"by_model"`
	ByTask  map[string]*TokenCounts `json:"by_task"`
}

// Tracker records usage per model and per task and writes it back as JSON.
// Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	data     Data
	filePath string
}

// NewTracker opens the usage file at path, creating parent directories as
// needed. A missing or corrupt file starts a fresh record rather than
// failing the run.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating usage directory: %w", err)
	}

	t := &Tracker{
		filePath: path,
		data: Data{
			Version: 1,
			ByModel: make(map[string]*TokenCounts),
			ByTask:  make(map[string]*TokenCounts),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading usage file: %w", err)
	}

	var loaded Data
	if err := json.Unmarshal(raw, &loaded); err != nil {
		// Corrupt file, start over.
		return t, nil
	}
	if loaded.ByModel == nil {
		loaded.ByModel = make(map[string]*TokenCounts)
	}
	if loaded.ByTask == nil {
		loaded.ByTask = make(map[string]*TokenCounts)
	}
	t.data = loaded
	return t, nil
}

// Record folds one request's token usage into the totals.
func (t *Tracker) Record(model, taskName string, inputTokens, outputTokens int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.Add(inputTokens, outputTokens, cost)

	byModel := t.data.ByModel[model]
	if byModel == nil {
		byModel = &TokenCounts{}
		t.data.ByModel[model] = byModel
	}
	byModel.Add(inputTokens, outputTokens, cost)

	byTask := t.data.ByTask[taskName]
	if byTask == nil {
		byTask = &TokenCounts{}
		t.data.ByTask[taskName] = byTask
	}
	byTask.Add(inputTokens, outputTokens, cost)
}

// Snapshot returns a deep copy of the current totals.
func (t *Tracker) Snapshot() Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Data{
		Version: t.data.Version,
		Total:   t.data.Total,
		ByModel: make(map[string]*TokenCounts, len(t.data.ByModel)),
		ByTask:  make(map[string]*TokenCounts, len(t.data.ByTask)),
	}
	for k, v := range t.data.ByModel {
		c := *v
		out.ByModel[k] = &c
	}
	for k, v := range t.data.ByTask {
		c := *v
		out.ByTask[k] = &c
	}
	return out
}

// Save writes the totals to disk atomically.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding usage data: %w", err)
	}

	tmp := t.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing usage file: %w", err)
	}
	if err := os.Rename(tmp, t.filePath); err != nil {
		return fmt.Errorf("replacing usage file: %w", err)
	}
	return nil
}
