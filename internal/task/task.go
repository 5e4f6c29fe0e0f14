// Package task defines the forecasting problem instances consumed by the
// acquisition engine. Instance construction (window selection, synthetic
// context generation) happens upstream in the benchmark; this package only
// models the immutable view the engine reads, plus a fixture loader so the
// harness can run from files.
package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// TimestampLayout is the wire format for every timestamp in prompts,
// fixtures and model output.
const TimestampLayout = "2006-01-02 15:04:05"

// Observation is one historical point of a univariate series.
type Observation struct {
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	Value     float64 `json:"value" yaml:"value"`
}

// Instance is a single forecasting problem: an ordered history, the target
// timestamps to predict, and optional contextual text. The engine treats it
// as read-only.
type Instance struct {
	Name        string        `json:"name" yaml:"name"`
	PastTime    []Observation `json:"past_time" yaml:"past_time"`
	FutureTime  []string      `json:"future_time" yaml:"future_time"`
	Background  string        `json:"background,omitempty" yaml:"background,omitempty"`
	Constraints string        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Scenario    string        `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	// MaxBatchSize caps how many candidates a single generation request may
	// ask for. Zero means no cap. Some backends reject large n values for
	// long prompts, so tasks built on them advertise a limit here.
	MaxBatchSize int `json:"max_batch_size,omitempty" yaml:"max_batch_size,omitempty"`
}

// Horizon returns the number of future timestamps requiring a forecast.
func (i *Instance) Horizon() int { return len(i.FutureTime) }

// Validate checks structural requirements shared by all instances.
func (i *Instance) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("task instance has no name")
	}
	if len(i.PastTime) == 0 {
		return fmt.Errorf("task %q: empty history", i.Name)
	}
	if len(i.FutureTime) == 0 {
		return fmt.Errorf("task %q: empty prediction horizon", i.Name)
	}
	if i.MaxBatchSize < 0 {
		return fmt.Errorf("task %q: negative max_batch_size", i.Name)
	}
	return nil
}

// Fingerprint returns a deterministic digest of everything that influences
// a forecast for this instance. Combined with an engine cache key it
// identifies a cached result.
func (i *Instance) Fingerprint() string {
	h := sha256.New()
	io.WriteString(h, i.Name)
	io.WriteString(h, "\x00")
	for _, o := range i.PastTime {
		io.WriteString(h, o.Timestamp)
		io.WriteString(h, strconv.FormatFloat(o.Value, 'g', -1, 64))
	}
	io.WriteString(h, "\x00")
	for _, t := range i.FutureTime {
		io.WriteString(h, t)
	}
	io.WriteString(h, "\x00")
	io.WriteString(h, i.Background)
	io.WriteString(h, "\x00")
	io.WriteString(h, i.Constraints)
	io.WriteString(h, "\x00")
	io.WriteString(h, i.Scenario)
	return hex.EncodeToString(h.Sum(nil))
}
